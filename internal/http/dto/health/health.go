// Package health contiene DTOs para endpoints de health check.
package health

import "time"

// ComponentStatus representa el estado de una dependencia chequeada.
type ComponentStatus struct {
	Status  string `json:"status"`            // "up" | "down"
	Message string `json:"message,omitempty"` // Detalle opcional
}

// HealthResponse es la respuesta de /healthz y /readyz.
type HealthResponse struct {
	Status     string                     `json:"status"` // "ok" | "ready" | "unavailable"
	Components map[string]ComponentStatus `json:"components,omitempty"`
	Timestamp  time.Time                  `json:"timestamp"`
}
