package payments

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"storefront/internal/orders"
)

const (
	payfastLiveHost    = "https://www.payfast.co.za/eng/process"
	payfastSandboxHost = "https://sandbox.payfast.co.za/eng/process"
)

// PayfastGateway is the hosted-checkout variant: the intent is a redirect URL
// the browser posts the customer to, and the asynchronous ITN callback is
// authenticated with PayFast's MD5 parameter signature.
type PayfastGateway struct {
	merchantID  string
	merchantKey string
	passphrase  string
	baseURL     string // our own base URL for return/cancel/notify routes
	processURL  string
}

func NewPayfastGateway(merchantID, merchantKey, passphrase, appBaseURL string, sandbox bool) (*PayfastGateway, error) {
	if merchantID == "" || merchantKey == "" {
		return nil, fmt.Errorf("payfast merchant credentials are empty")
	}
	processURL := payfastLiveHost
	if sandbox {
		processURL = payfastSandboxHost
	}
	return &PayfastGateway{
		merchantID:  merchantID,
		merchantKey: merchantKey,
		passphrase:  passphrase,
		baseURL:     strings.TrimRight(appBaseURL, "/"),
		processURL:  processURL,
	}, nil
}

func (g *PayfastGateway) Name() string { return "payfast" }

type kv struct {
	key   string
	value string
}

// CreateIntent builds the signed redirect URL for the order's frozen total. The
// order id rides in m_payment_id and comes back on the ITN callback.
func (g *PayfastGateway) CreateIntent(_ context.Context, order orders.Order) (Intent, error) {
	pairs := []kv{
		{"merchant_id", g.merchantID},
		{"merchant_key", g.merchantKey},
		{"return_url", g.baseURL + "/checkout/success"},
		{"cancel_url", g.baseURL + "/checkout/cancel"},
		{"notify_url", g.baseURL + "/api/payment-webhook"},
		{"m_payment_id", order.ID},
		{"amount", fmt.Sprintf("%.2f", float64(order.TotalPrice)/100)},
		{"item_name", "Order " + order.ID},
	}
	pairs = append(pairs, kv{"signature", signature(pairs, g.passphrase)})

	var query strings.Builder
	for i, p := range pairs {
		if i > 0 {
			query.WriteByte('&')
		}
		query.WriteString(p.key)
		query.WriteByte('=')
		query.WriteString(url.QueryEscape(p.value))
	}

	return Intent{
		Provider:    g.Name(),
		Ref:         order.ID,
		RedirectURL: g.processURL + "?" + query.String(),
	}, nil
}

// VerifyNotification authenticates a PayFast ITN payload. The signature is the
// MD5 of the fields in the order they were posted, excluding the signature
// itself, with the passphrase appended; only after it checks out is the payment
// status read.
func (g *PayfastGateway) VerifyNotification(payload []byte, _ http.Header) (Notification, error) {
	pairs, err := parseForm(string(payload))
	if err != nil {
		return Notification{}, fmt.Errorf("failed to parse itn payload: %w", err)
	}

	var received string
	var signed []kv
	fields := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p.key == "signature" {
			received = p.value
			continue
		}
		signed = append(signed, p)
		fields[p.key] = p.value
	}

	if received == "" || received != signature(signed, g.passphrase) {
		return Notification{}, ErrBadSignature
	}

	orderID := fields["m_payment_id"]
	if orderID == "" {
		return Notification{}, fmt.Errorf("itn payload carries no m_payment_id")
	}

	return Notification{
		OrderID:     orderID,
		ProviderRef: fields["pf_payment_id"],
		Completed:   fields["payment_status"] == "COMPLETE",
	}, nil
}

// signature computes PayFast's MD5 over urlencoded pairs in the given order.
func signature(pairs []kv, passphrase string) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(strings.ReplaceAll(url.QueryEscape(p.value), "%20", "+"))
	}
	if passphrase != "" {
		b.WriteString("&passphrase=")
		b.WriteString(strings.ReplaceAll(url.QueryEscape(passphrase), "%20", "+"))
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// parseForm splits a form-encoded body without losing field order, which the
// signature depends on.
func parseForm(body string) ([]kv, error) {
	var pairs []kv
	for _, part := range strings.Split(strings.TrimSpace(body), "&") {
		if part == "" {
			continue
		}
		key, rawValue, _ := strings.Cut(part, "=")
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("bad field %q: %w", key, err)
		}
		pairs = append(pairs, kv{key: key, value: value})
	}
	return pairs, nil
}
