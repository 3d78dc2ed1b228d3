package smtp

import (
	"errors"
	"fmt"
)

// Step identifica un paso del handshake.
type Step int

const (
	StepConnect Step = iota
	StepGreeting
	StepEHLO
	StepStartTLS
	StepTLSHandshake
	StepEHLOTLS
	StepAuth
	StepAuthUser
	StepAuthPass
	StepMailFrom
	StepRcptTo
	StepData
	StepBody
	StepQuit
)

var stepNames = [...]string{
	StepConnect:      "connect",
	StepGreeting:     "greeting",
	StepEHLO:         "ehlo",
	StepStartTLS:     "starttls",
	StepTLSHandshake: "tls_handshake",
	StepEHLOTLS:      "ehlo_tls",
	StepAuth:         "auth_login",
	StepAuthUser:     "auth_username",
	StepAuthPass:     "auth_password",
	StepMailFrom:     "mail_from",
	StepRcptTo:       "rcpt_to",
	StepData:         "data",
	StepBody:         "body",
	StepQuit:         "quit",
}

func (s Step) String() string {
	if s >= 0 && int(s) < len(stepNames) {
		return stepNames[s]
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	// ErrAuthFailed indica una respuesta 534/535 del servidor.
	ErrAuthFailed = errors.New("smtp: authentication failed (check App Password)")

	// ErrInvalidAppPassword indica que la App Password no tiene 16 caracteres.
	ErrInvalidAppPassword = errors.New("smtp: app password must be exactly 16 characters (spaces ignored)")

	// ErrMissingCredentials indica usuario o host vacío.
	ErrMissingCredentials = errors.New("smtp: host and username are required")

	// ErrStartTLSUnsupported indica que el servidor no anunció STARTTLS.
	ErrStartTLSUnsupported = errors.New("smtp: server does not advertise STARTTLS")

	// ErrAuthLoginUnsupported indica que el servidor no anunció AUTH LOGIN.
	ErrAuthLoginUnsupported = errors.New("smtp: server does not advertise AUTH LOGIN")
)

// StepError envuelve el error de un paso concreto del handshake.
type StepError struct {
	Step Step
	Code int // código SMTP de la respuesta, 0 si no hubo
	Err  error
}

func (e *StepError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("smtp %s: %d: %v", e.Step, e.Code, e.Err)
	}
	return fmt.Sprintf("smtp %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
