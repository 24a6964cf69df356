package consul

import (
	"fmt"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
)

// NewClient connects to the consul agent at the given address. An empty address
// disables registration and returns a nil client.
func NewClient(address string) (*consulapi.Client, error) {
	if address == "" {
		return nil, nil
	}
	cfg := consulapi.DefaultConfig()
	cfg.Address = address
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return client, nil
}

// RegisterService registers this instance with an HTTP health check on /ping.
func RegisterService(client *consulapi.Client, name, host string, port int) error {
	if client == nil {
		return nil
	}

	registration := &consulapi.AgentServiceRegistration{
		ID:      name + "-" + host + "-" + strconv.Itoa(port),
		Name:    name,
		Address: host,
		Port:    port,
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/ping", host, port),
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	if err := client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	return nil
}

// GetServiceAddress resolves one healthy instance of a registered service.
func GetServiceAddress(client *consulapi.Client, name string) (string, int, error) {
	if client == nil {
		return "", 0, fmt.Errorf("consul client is not initialized")
	}

	services, _, err := client.Health().Service(name, "", true, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to query service %q: %w", name, err)
	}
	if len(services) == 0 {
		return "", 0, fmt.Errorf("no healthy instances of service %q", name)
	}

	svc := services[0].Service
	return svc.Address, svc.Port, nil
}
