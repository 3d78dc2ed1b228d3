package email

import (
	"github.com/dropDatabas3/learnhabit/internal/email/smtp"
)

// ProvidersConfig agrupa la configuración de todos los providers.
type ProvidersConfig struct {
	Resend   ResendConfig
	SMTP     smtp.Config
	SendGrid SendGridConfig
}

// BuildProviders arma la cadena en orden de prioridad: resend, smtp, sendgrid.
// Solo incluye los que están configurados.
func BuildProviders(cfg ProvidersConfig) []Provider {
	var out []Provider
	if p := NewResendProvider(cfg.Resend); p != nil {
		out = append(out, p)
	}
	if p := NewSMTPProvider(cfg.SMTP); p != nil {
		out = append(out, p)
	}
	if p := NewSendGridProvider(cfg.SendGrid); p != nil {
		out = append(out, p)
	}
	return out
}
