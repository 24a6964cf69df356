package email

import (
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
)

// Conf sends transactional mail over SMTP. An empty host disables sending so
// local development works without a relay.
type Conf struct {
	host string
	port int
	user string
	pass string
	from string
}

func NewConf(host string, port int, user, pass, from string) *Conf {
	return &Conf{host: host, port: port, user: user, pass: pass, from: from}
}

// SendVerification mails the email-verification link.
func (c *Conf) SendVerification(to, verifyURL string) error {
	body := "Welcome! Please verify your email address by visiting:\r\n\r\n" + verifyURL +
		"\r\n\r\nThe link expires in 24 hours."
	return c.send(to, "Verify your email", body)
}

// SendPasswordReset mails the password-reset link.
func (c *Conf) SendPasswordReset(to, resetURL string) error {
	body := "A password reset was requested for your account. Visit:\r\n\r\n" + resetURL +
		"\r\n\r\nIf this wasn't you, ignore this message."
	return c.send(to, "Reset your password", body)
}

// SendOrderConfirmation mails the paid-order confirmation.
func (c *Conf) SendOrderConfirmation(to, orderID string) error {
	body := fmt.Sprintf("Thank you for your order! Your order ID is %s. We are processing it now.", orderID)
	return c.send(to, "Order confirmation", body)
}

// Message renders the full RFC-style message for the given recipient. Split out
// so templates are testable without a relay.
func Message(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func (c *Conf) send(to, subject, body string) error {
	if c.host == "" {
		return nil
	}

	addr := c.host + ":" + strconv.Itoa(c.port)
	auth := smtp.PlainAuth("", c.user, c.pass, c.host)
	if err := smtp.SendMail(addr, auth, c.from, []string{to}, Message(c.from, to, subject, body)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
