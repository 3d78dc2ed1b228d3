// Package verification define los cuerpos JSON de /v1/email-verification.
package verification

import "time"

// SendRequest es el body de /send y /resend.
type SendRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
}

type SendResponse struct {
	Success           bool       `json:"success"`
	Error             string     `json:"error,omitempty"`
	Code              string     `json:"code,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
}

type VerifyRequest struct {
	Email string `json:"email"`
	PIN   string `json:"pin"`
}

// VerifyResponse: attempts_remaining solo viaja en rechazos por PIN incorrecto
// o intentos agotados; puede ser 0.
type VerifyResponse struct {
	Success           bool       `json:"success"`
	Message           string     `json:"message,omitempty"`
	Error             string     `json:"error,omitempty"`
	Code              string     `json:"code,omitempty"`
	AttemptsRemaining *int       `json:"attempts_remaining,omitempty"`
	Ticket            string     `json:"ticket,omitempty"`
	TicketExpiresAt   *time.Time `json:"ticket_expires_at,omitempty"`
}

type StatusResponse struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

type TicketVerifyRequest struct {
	Ticket string `json:"ticket"`
}

type TicketVerifyResponse struct {
	Valid bool   `json:"valid"`
	Email string `json:"email,omitempty"`
	Error string `json:"error,omitempty"`
}
