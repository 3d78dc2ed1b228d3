package email

import (
	"context"

	"github.com/dropDatabas3/learnhabit/internal/email/smtp"
)

// SMTPProvider adapta el cliente SMTP propio a Provider.
type SMTPProvider struct {
	client *smtp.Client
}

// NewSMTPProvider retorna nil si faltan host, usuario o password.
// El largo de la App Password se valida en cada Send, antes de conectar.
func NewSMTPProvider(cfg smtp.Config) *SMTPProvider {
	if cfg.Host == "" || cfg.Username == "" || cfg.AppPassword == "" {
		return nil
	}
	return &SMTPProvider{client: smtp.NewClient(cfg)}
}

func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) Send(ctx context.Context, m Message) error {
	return p.client.Send(ctx, smtp.Mail{
		To:      m.To,
		Subject: m.Subject,
		HTML:    m.HTML,
		Text:    m.Text,
	})
}
