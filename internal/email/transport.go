package email

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/learnhabit/internal/metrics"
	"github.com/dropDatabas3/learnhabit/internal/observability/logger"
)

// FallbackFunc se ejecuta cuando ningún provider entregó el mensaje.
type FallbackFunc func(ctx context.Context, m Message, attempts []Attempt) error

// Transport prueba los providers en orden fijo, secuencialmente.
type Transport struct {
	providers []Provider
	fallback  FallbackFunc
}

// NewTransport crea un Transport con los providers en orden de prioridad.
// Los nil se descartan.
func NewTransport(providers ...Provider) *Transport {
	t := &Transport{fallback: LogFallback}
	for _, p := range providers {
		if p != nil {
			t.providers = append(t.providers, p)
		}
	}
	return t
}

// WithFallback reemplaza el fallback por defecto (LogFallback).
func (t *Transport) WithFallback(f FallbackFunc) *Transport {
	if f != nil {
		t.fallback = f
	}
	return t
}

// Providers retorna los nombres en orden de prioridad.
func (t *Transport) Providers() []string {
	out := make([]string, 0, len(t.providers))
	for _, p := range t.providers {
		out = append(out, p.Name())
	}
	return out
}

// Send entrega m con el primer provider que acepte. Si todos fallan (o no hay
// ninguno configurado) corre el fallback y reporta OutcomeLoggedFallback.
func (t *Transport) Send(ctx context.Context, m Message) (Delivery, error) {
	log := logger.From(ctx).With(logger.Component("email.transport"))
	var d Delivery

	for _, p := range t.providers {
		if ctx.Err() != nil {
			log.Warn("context done, skipping remaining providers", logger.Err(ctx.Err()))
			break
		}

		a := attempt(ctx, p, m)
		d.Attempts = append(d.Attempts, a)

		if a.Err == nil {
			metrics.RecordDeliveryAttempt(a.Provider, "ok")
			log.Info("email delivered",
				logger.Provider(a.Provider),
				logger.DurationMs(a.Duration.Milliseconds()),
			)
			d.Outcome = OutcomeDelivered
			d.Provider = a.Provider
			return d, nil
		}

		result := "error"
		if a.Panicked {
			result = "panic"
		}
		metrics.RecordDeliveryAttempt(a.Provider, result)
		log.Warn("email provider failed",
			logger.Provider(a.Provider),
			logger.String("diag", a.Diag.Code),
			logger.Hint(a.Diag.Hint),
			logger.Bool("temporary", a.Diag.Temporary),
			logger.Err(a.Err),
		)
	}

	d.Outcome = OutcomeLoggedFallback
	metrics.RecordFallback()
	if err := runFallback(ctx, t.fallback, m, d.Attempts); err != nil {
		log.Error("email fallback failed", logger.Err(err))
		return d, fmt.Errorf("email: fallback failed: %w", err)
	}
	return d, nil
}

// attempt aísla un provider: errores y panics quedan en el Attempt.
func attempt(ctx context.Context, p Provider, m Message) (a Attempt) {
	a.Provider = p.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.Err = fmt.Errorf("provider %s panicked: %v", a.Provider, r)
			a.Panicked = true
			a.Diag = Diagnosis{Code: "panic", Hint: "provider bug; see stack in logs"}
			logger.From(ctx).Error("email provider panic",
				logger.Provider(a.Provider),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
		a.Duration = time.Since(start)
	}()

	if err := p.Send(ctx, m); err != nil {
		a.Err = err
		a.Diag = Diagnose(err)
	}
	return a
}

func runFallback(ctx context.Context, f FallbackFunc, m Message, attempts []Attempt) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fallback panicked: %v", r)
		}
	}()
	return f(ctx, m, attempts)
}

// LogFallback deja el destino y el PIN en el log para que soporte pueda
// completar la verificación a mano.
func LogFallback(ctx context.Context, m Message, attempts []Attempt) error {
	tried := make([]string, 0, len(attempts))
	for _, a := range attempts {
		tried = append(tried, a.Provider)
	}
	logger.From(ctx).Warn("no email provider delivered; verification code logged",
		logger.Component("email.fallback"),
		logger.Email(m.To),
		logger.PIN(m.Code),
		zap.Strings("providers_tried", tried),
	)
	return nil
}
