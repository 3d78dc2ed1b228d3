// Package health contiene los endpoints de liveness y readiness.
package health

import (
	"context"
	"net/http"
	"time"

	dto "github.com/dropDatabas3/learnhabit/internal/http/dto/health"
	"github.com/dropDatabas3/learnhabit/internal/http/helpers"
	"github.com/dropDatabas3/learnhabit/internal/observability/logger"
)

// Pinger es cualquier dependencia que se pueda chequear (store, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

type Controller struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewController recibe los componentes que /readyz debe chequear, por nombre.
func NewController(checks map[string]Pinger) *Controller {
	return &Controller{checks: checks, timeout: 2 * time.Second}
}

// Healthz maneja GET /healthz. Solo indica que el proceso responde.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

// Readyz maneja GET /readyz
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	resp := dto.HealthResponse{
		Status:     "ready",
		Components: make(map[string]dto.ComponentStatus, len(c.checks)),
		Timestamp:  time.Now().UTC(),
	}
	status := http.StatusOK
	for name, p := range c.checks {
		if err := p.Ping(ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", logger.Component(name), logger.Err(err))
			// el detalle del error queda en el log, no en la respuesta
			resp.Components[name] = dto.ComponentStatus{Status: "down"}
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = dto.ComponentStatus{Status: "up"}
	}
	helpers.WriteJSON(w, status, resp)
}
