// Package notify sends the purchase-confirmation email after a transaction
// settles. Failures here are the caller's to log; they must never bubble up
// into a webhook response.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/tradelearn/payments-backend/internal/config"
	"github.com/tradelearn/payments-backend/internal/models"
)

type Notifier interface {
	SendPurchaseConfirmation(ctx context.Context, p models.Purchase) error
}

// New returns an SMTP-backed notifier, or a no-op one when SMTP is not
// configured.
func New(cfg config.SMTPConfig) Notifier {
	if cfg.Host == "" {
		return nopNotifier{}
	}
	return &smtpMailer{cfg: cfg}
}

type nopNotifier struct{}

func (nopNotifier) SendPurchaseConfirmation(context.Context, models.Purchase) error { return nil }

type smtpMailer struct {
	cfg config.SMTPConfig
}

func (m *smtpMailer) SendPurchaseConfirmation(_ context.Context, p models.Purchase) error {
	if p.Email == "" {
		return fmt.Errorf("purchase %s has no email", p.ID)
	}

	subject := "Your purchase is confirmed"
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", p.Email)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	if p.Name != "" {
		fmt.Fprintf(&b, "Hi %s,\r\n\r\n", p.Name)
	}
	if p.Course != "" {
		fmt.Fprintf(&b, "Your payment of %s %s for %q was received.\r\n", p.Amount.StringFixed(2), p.Currency, p.Course)
	} else {
		fmt.Fprintf(&b, "Your payment of %s %s was received.\r\n", p.Amount.StringFixed(2), p.Currency)
	}
	fmt.Fprintf(&b, "Reference: %s\r\n", p.TransactionID)

	addr := m.cfg.Host + ":" + m.cfg.Port
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}
	return smtp.SendMail(addr, auth, m.cfg.From, []string{p.Email}, []byte(b.String()))
}
