package verification

import (
	"fmt"
	"time"

	"github.com/dropDatabas3/learnhabit/internal/domain/repository"
)

// Outcome es el resultado de evaluar un PIN candidato.
type Outcome string

const (
	OutcomeInvalidFormat     Outcome = "invalid_format"
	OutcomeNotFound          Outcome = "not_found"
	OutcomeAlreadyVerified   Outcome = "already_verified"
	OutcomeExpired           Outcome = "expired"
	OutcomeAttemptsExhausted Outcome = "attempts_exhausted"
	OutcomeMismatch          Outcome = "mismatch"
	OutcomeMatched           Outcome = "matched"
)

// Success es true para Matched y AlreadyVerified.
func (o Outcome) Success() bool {
	return o == OutcomeMatched || o == OutcomeAlreadyVerified
}

// Decision es la transición calculada por Evaluate.
type Decision struct {
	Outcome Outcome

	// Persist indica que hay que guardar Attempts/Verified en el registro.
	Persist  bool
	Attempts int
	Verified bool

	// AttemptsRemaining solo tiene sentido para Mismatch y AttemptsExhausted.
	AttemptsRemaining int
}

// Evaluate aplica las reglas de verificación sobre rec en el instante now.
// rec nil significa que no hay registro para el email. No tiene efectos.
func Evaluate(rec *repository.VerificationRecord, candidate string, now time.Time) Decision {
	if !ValidPINFormat(candidate) {
		return Decision{Outcome: OutcomeInvalidFormat}
	}
	if rec == nil {
		return Decision{Outcome: OutcomeNotFound}
	}
	if rec.Verified {
		return Decision{Outcome: OutcomeAlreadyVerified}
	}
	// vencimiento y agotamiento antes de comparar
	if rec.Expired(now) {
		return Decision{Outcome: OutcomeExpired}
	}
	if rec.Exhausted() {
		return Decision{Outcome: OutcomeAttemptsExhausted}
	}

	attempts := rec.Attempts + 1
	if candidate == rec.PIN {
		return Decision{Outcome: OutcomeMatched, Persist: true, Attempts: attempts, Verified: true}
	}
	remaining := rec.MaxAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Outcome: OutcomeMismatch, Persist: true, Attempts: attempts, AttemptsRemaining: remaining}
}

// Message es el texto para el usuario final.
func (d Decision) Message() string {
	switch d.Outcome {
	case OutcomeInvalidFormat:
		return "PIN must be exactly 6 digits"
	case OutcomeNotFound:
		return "No verification code found for this email. Please request a new code."
	case OutcomeAlreadyVerified:
		return "Email already verified"
	case OutcomeExpired:
		return "Verification code has expired. Please request a new code."
	case OutcomeAttemptsExhausted:
		return "Too many failed attempts. Please request a new code."
	case OutcomeMismatch:
		if d.AttemptsRemaining == 1 {
			return "Invalid verification code. 1 attempt remaining."
		}
		return fmt.Sprintf("Invalid verification code. %d attempts remaining.", d.AttemptsRemaining)
	case OutcomeMatched:
		return "Email verified successfully"
	default:
		return string(d.Outcome)
	}
}
