package verification

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidEmail indica un email vacío o mal formado.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidPINFormat indica un PIN que no son 6 dígitos.
	ErrInvalidPINFormat = errors.New("PIN must be exactly 6 digits")

	// ErrResendTooSoon es el sentinel de *ThrottleError.
	ErrResendTooSoon = errors.New("resend requested too soon")

	// ErrIssueFailed indica que el registro no se pudo guardar; no se envió email.
	ErrIssueFailed = errors.New("failed to issue verification code")

	// ErrDeliveryFailed indica que falló incluso el fallback de log.
	ErrDeliveryFailed = errors.New("failed to deliver verification code")
)

// ThrottleError indica cuánto falta para poder reenviar.
type ThrottleError struct {
	RetryAfter time.Duration
}

// Seconds redondea hacia arriba.
func (e *ThrottleError) Seconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting a new code", e.Seconds())
}

func (e *ThrottleError) Is(target error) bool { return target == ErrResendTooSoon }
