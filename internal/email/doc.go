// Package email entrega los mensajes de verificación.
//
// Arquitectura:
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                    verification.Service                         │
//	└───────────────────────────┬─────────────────────────────────────┘
//	                            │ PINMailer.SendPIN
//	                            ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│  Templates (subject/html/text)  →  Transport.Send               │
//	└───────────────────────────┬─────────────────────────────────────┘
//	                            │ en orden, uno por vez
//	                            ▼
//	   resend (HTTP)  →  smtp (cliente propio)  →  sendgrid (HTTP)
//	                            │
//	                            ▼ si ninguno entregó
//	                    LoggedFallback (log + métrica)
//
// Cada intento queda registrado en Delivery.Attempts con su diagnóstico.
// Transport.Send solo devuelve error si falla el propio fallback.
package email
