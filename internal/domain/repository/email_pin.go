package repository

import (
	"context"
	"strings"
	"time"
)

// VerificationRecord es el PIN activo de un email. Hay a lo sumo uno por email:
// emitir un PIN nuevo reemplaza el anterior (sin merge ni historial).
type VerificationRecord struct {
	ID          string
	Email       string // normalizado (lower-case, sin espacios)
	PIN         string // 6 dígitos
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Attempts    int
	MaxAttempts int
	Verified    bool // monótono: nunca vuelve a false en el mismo registro

	// Version se incrementa en cada escritura; UpdateAttempts la usa como guarda.
	Version int64
}

// Expired indica si el registro ya no sirve para verificar en el instante now.
func (r *VerificationRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Exhausted indica si se alcanzó el límite de intentos.
func (r *VerificationRecord) Exhausted() bool {
	return r.Attempts >= r.MaxAttempts
}

// AttemptsRemaining nunca es negativo.
func (r *VerificationRecord) AttemptsRemaining() int {
	if n := r.MaxAttempts - r.Attempts; n > 0 {
		return n
	}
	return 0
}

// NormalizeEmail es la clave de almacenamiento de los registros.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// VerificationRepository persiste registros de verificación por email.
type VerificationRepository interface {
	// Put reemplaza de forma atómica cualquier registro previo del mismo email.
	// Al volver, rec.Version refleja la versión almacenada.
	Put(ctx context.Context, rec *VerificationRecord) error

	// Get busca por email (case-insensitive). Retorna ErrNotFound si no existe.
	Get(ctx context.Context, email string) (*VerificationRecord, error)

	// UpdateAttempts actualiza attempts/verified solo si la versión almacenada
	// sigue siendo expectedVersion. Retorna ErrNotFound si no hay registro y
	// ErrVersionConflict si el registro cambió desde que se leyó.
	// verified se combina con OR: un registro verificado no se des-verifica.
	UpdateAttempts(ctx context.Context, email string, attempts int, verified bool, expectedVersion int64) error

	// Ping verifica la conexión con el backend.
	Ping(ctx context.Context) error

	// Close libera recursos.
	Close() error
}
