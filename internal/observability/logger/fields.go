package logger

import (
	"time"

	"go.uber.org/zap"
)

// ─── HTTP ───

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }

// ─── Verificación ───

// Email crea un campo para el email destino (usar con cuidado en prod).
func Email(v string) zap.Field { return zap.String("email", v) }

// PIN solo se usa en el fallback de envío; en cualquier otro lugar no se loguea.
func PIN(v string) zap.Field { return zap.String("pin", v) }

func Outcome(v string) zap.Field  { return zap.String("outcome", v) }
func Attempts(v int) zap.Field    { return zap.Int("attempts", v) }
func Provider(v string) zap.Field { return zap.String("provider", v) }

// Hint es una pista accionable para el operador (ej: revisar App Password).
func Hint(v string) zap.Field { return zap.String("hint", v) }

func RetryAfter(v time.Duration) zap.Field { return zap.Duration("retry_after", v) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
