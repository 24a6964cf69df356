package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Conf wraps the franz-go client used to publish order events.
type Conf struct {
	client *kgo.Client
}

// NewConf connects to the given comma-separated broker list. An empty list
// disables publishing; ProduceMessage becomes a no-op so local development does
// not require a running broker.
func NewConf(brokers string) (*Conf, error) {
	if brokers == "" {
		return &Conf{}, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
		kgo.ProducerBatchMaxBytes(1 << 20),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &Conf{client: client}, nil
}

// ProduceMessage publishes one record synchronously.
func (c *Conf) ProduceMessage(topic string, key, value []byte) error {
	if c.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := c.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

func (c *Conf) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
