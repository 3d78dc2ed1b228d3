// Package audit registra los eventos de verificación que interesan fuera del
// log operativo: emisión de códigos, verificaciones exitosas y bloqueos.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/learnhabit/internal/observability/logger"
)

const (
	EventPINIssued         = "pin_issued"
	EventEmailVerified     = "email_verified"
	EventAttemptsExhausted = "pin_attempts_exhausted"
)

// Log escribe un evento de auditoría con el logger del contexto, bajo el nombre "audit".
func Log(ctx context.Context, event, email string, fields ...zap.Field) {
	all := make([]zap.Field, 0, len(fields)+2)
	all = append(all, zap.String("event", event), logger.MaskedEmail(email))
	all = append(all, fields...)
	logger.From(ctx).Named("audit").Info(event, all...)
}
