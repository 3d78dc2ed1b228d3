package email

import (
	"context"
	"time"
)

// Message es un email listo para enviar.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string

	// Code es el PIN del mensaje. Solo lo usa el fallback de log.
	Code string
}

// Provider es un canal de entrega (API transaccional, SMTP, ...).
type Provider interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// Outcome describe cómo terminó un envío.
type Outcome string

const (
	OutcomeDelivered      Outcome = "delivered"
	OutcomeLoggedFallback Outcome = "logged_fallback"
)

// Attempt es el resultado de un provider dentro de un envío.
type Attempt struct {
	Provider string
	Err      error
	Diag     Diagnosis
	Panicked bool
	Duration time.Duration
}

// Delivery es el resultado de Transport.Send.
type Delivery struct {
	Outcome  Outcome
	Provider string // provider que entregó; vacío en fallback
	Attempts []Attempt
}

// Delivered indica si algún provider aceptó el mensaje.
func (d Delivery) Delivered() bool { return d.Outcome == OutcomeDelivered }
