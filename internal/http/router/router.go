// Package router arma el chi.Router de la API.
package router

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	healthctrl "github.com/dropDatabas3/learnhabit/internal/http/controllers/health"
	verifyctrl "github.com/dropDatabas3/learnhabit/internal/http/controllers/verification"
	httperrors "github.com/dropDatabas3/learnhabit/internal/http/errors"
	mw "github.com/dropDatabas3/learnhabit/internal/http/middlewares"
	"github.com/dropDatabas3/learnhabit/internal/rate"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Verification *verifyctrl.Controller
	Health       *healthctrl.Controller

	// Metrics es el handler de /metrics; nil lo deshabilita.
	Metrics http.Handler

	// RateLimiter es opcional; aplica solo a /v1/email-verification.
	RateLimiter rate.Limiter

	// TrustedProxies habilita X-Forwarded-For cuando el peer está en estos rangos.
	TrustedProxies []netip.Prefix
}

// New registra todas las rutas.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		mw.WithMetrics(),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Health y métricas: sin logging (muy frecuentes) ni rate limit
	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Healthz)
		r.Get("/readyz", deps.Health.Readyz)
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	if c := deps.Verification; c != nil {
		r.Route("/v1/email-verification", func(r chi.Router) {
			r.Use(
				mw.WithLogging(),
				mw.WithNoStore(),
				mw.WithRateLimit(mw.RateLimitConfig{
					Limiter: deps.RateLimiter,
					KeyFunc: mw.ProxyAwareRateKey(deps.TrustedProxies),
				}),
			)
			r.Post("/send", c.Send)
			r.Post("/verify", c.Verify)
			r.Post("/resend", c.Resend)
			r.Get("/status", c.Status)
			r.Post("/ticket/verify", c.VerifyTicket)
		})
	}
	return r
}
