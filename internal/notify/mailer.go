package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/ariefcatur/go-shop-payments/internal/config"
	"github.com/wneessen/go-mail"
)

// Mailer delivers plain text mail over SMTP.
type Mailer struct {
	mu     sync.Mutex
	client *mail.Client
	from   string
}

func NewMailer(cfg config.Mail) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Mailer{client: c, from: cfg.From}, nil
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client.DialAndSendWithContext(ctx, msg)
}
