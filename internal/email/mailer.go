package email

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Sender es lo que PINMailer necesita del transporte.
type Sender interface {
	Send(ctx context.Context, m Message) (Delivery, error)
}

// PINMailer renderiza y envía el email con el PIN.
type PINMailer struct {
	sender    Sender
	templates *Templates
}

// NewPINMailer crea un PINMailer.
func NewPINMailer(sender Sender, templates *Templates) *PINMailer {
	return &PINMailer{sender: sender, templates: templates}
}

// SendPIN envía pin a to. ttl se muestra en minutos (redondeado hacia arriba).
func (m *PINMailer) SendPIN(ctx context.Context, to, firstName, pin string, ttl time.Duration) (Delivery, error) {
	msg, err := m.templates.RenderPIN(to, PINVars{
		FirstName:        firstName,
		PIN:              pin,
		ExpiresInMinutes: int(math.Ceil(ttl.Minutes())),
	})
	if err != nil {
		return Delivery{}, fmt.Errorf("email: %w", err)
	}
	return m.sender.Send(ctx, msg)
}
