// Package metrics define los collectors Prometheus del servicio. Están en un
// paquete propio para que verification, email y http los compartan sin ciclos.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "Requests en vuelo por método y ruta",
	}, []string{"method", "path"})

	// Verificación por PIN
	PINIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "email_pin_issued_total",
		Help: "PINs emitidos por resultado",
	}, []string{"result"}) // result: issued|throttled|store_failed|delivery_failed

	PINVerifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "email_pin_verify_total",
		Help: "Verificaciones de PIN por outcome",
	}, []string{"outcome"})

	StoreErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "email_store_errors_total",
		Help: "Errores del store de registros por operación",
	}, []string{"op"}) // op: put|get|update

	// Transporte de email
	DeliveryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "email_delivery_attempts_total",
		Help: "Intentos de envío por provider y resultado",
	}, []string{"provider", "result"}) // result: ok|error|panic

	FallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "email_fallback_total",
		Help: "Envíos que terminaron en el fallback de log (ningún provider entregó)",
	})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestsTotal, HTTPRequestDuration, HTTPInflight,
		PINIssuedTotal, PINVerifyTotal, StoreErrorsTotal,
		DeliveryAttemptsTotal, FallbackTotal,
	}
}

// Register registra todos los collectors en reg (o el default si es nil) y
// devuelve el handler para /metrics. Es idempotente por registry y se puede
// llamar con varios registries: los collectors son los mismos.
func Register(reg prometheus.Registerer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	if g, ok := reg.(prometheus.Gatherer); ok && reg != prometheus.DefaultRegisterer {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{}), nil
	}
	return promhttp.Handler(), nil
}

// registerCollector registra el collector ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

func RecordPINIssued(result string)  { PINIssuedTotal.WithLabelValues(result).Inc() }
func RecordPINVerify(outcome string) { PINVerifyTotal.WithLabelValues(outcome).Inc() }
func RecordStoreError(op string)     { StoreErrorsTotal.WithLabelValues(op).Inc() }
func RecordFallback()                { FallbackTotal.Inc() }

// RecordDeliveryAttempt registra un intento de envío (result: ok|error|panic).
func RecordDeliveryAttempt(provider, result string) {
	DeliveryAttemptsTotal.WithLabelValues(provider, result).Inc()
}
