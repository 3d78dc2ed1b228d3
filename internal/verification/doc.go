// Package verification implementa la verificación de email por PIN.
//
// Flujo:
//
//	SendPIN ──► GeneratePIN ──► repo.Put (reemplaza) ──► PINMailer (providers + fallback)
//	VerifyPIN ─► formato ──► repo.Get ──► Evaluate ──► repo.UpdateAttempts (guardado por versión)
//	ResendPIN ─► repo.Get ──► Throttle.Check ──► SendPIN
//
// Reglas: el PIN vence a los 10 minutos, admite 3 intentos y una vez
// verificado el registro queda verificado. Vencimiento y agotamiento se
// chequean antes de comparar el PIN.
package verification
