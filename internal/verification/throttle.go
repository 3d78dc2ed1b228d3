package verification

import (
	"time"

	"github.com/dropDatabas3/learnhabit/internal/domain/repository"
)

// DefaultResendCooldown es la espera mínima entre reenvíos.
const DefaultResendCooldown = 60 * time.Second

// Throttle limita los reenvíos por email.
type Throttle struct {
	Cooldown time.Duration
}

// Check rechaza cuando existe un registro vigente más joven que el cooldown.
// retryAfter es lo que falta para poder reenviar.
func (t Throttle) Check(rec *repository.VerificationRecord, now time.Time) (retryAfter time.Duration, allowed bool) {
	if rec == nil || rec.Expired(now) {
		return 0, true
	}
	cooldown := t.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultResendCooldown
	}
	age := now.Sub(rec.CreatedAt)
	if age >= cooldown {
		return 0, true
	}
	return cooldown - age, false
}
