package smtp

import (
	"errors"
	"net"
	"strings"
	"time"
)

// Diag contiene información de diagnóstico de un error SMTP.
type Diag struct {
	Code       string        // auth|app_password|tls|dial|timeout|rate_limited|invalid_recipient|rejected|protocol|network|unknown
	Temporary  bool          // si conviene reintentar
	RetryAfter time.Duration // 0 si no se pudo inferir
	Hint       string        // acción sugerida para el operador
}

// DiagnoseSMTP analiza un error del cliente y retorna información de diagnóstico.
func DiagnoseSMTP(err error) Diag {
	if err == nil {
		return Diag{Code: "unknown"}
	}

	switch {
	case errors.Is(err, ErrInvalidAppPassword):
		return Diag{Code: "app_password", Hint: "check App Password length: it must be 16 characters"}
	case errors.Is(err, ErrMissingCredentials):
		return Diag{Code: "config", Hint: "set SMTP_HOST and SMTP_USERNAME"}
	case errors.Is(err, ErrAuthFailed):
		return Diag{Code: "auth", Hint: "check App Password and that 2-step verification is enabled for the account"}
	case errors.Is(err, ErrStartTLSUnsupported), errors.Is(err, ErrAuthLoginUnsupported):
		return Diag{Code: "protocol", Hint: "server must offer STARTTLS and AUTH LOGIN on port 587"}
	}

	// timeouts
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Diag{Code: "timeout", Temporary: true, Hint: "server did not answer within the inactivity timeout"}
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded") {
		return Diag{Code: "timeout", Temporary: true, Hint: "server did not answer within the inactivity timeout"}
	}

	// dial/conn/dns
	if strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connectex:") || // windows
		strings.Contains(s, "no such host") ||
		strings.Contains(s, "dial tcp") {
		return Diag{Code: "dial", Temporary: true, Hint: "check SMTP_HOST/SMTP_PORT and outbound firewall rules"}
	}

	// tls/handshake/cert
	if strings.Contains(s, "x509:") ||
		strings.Contains(s, "tls") && (strings.Contains(s, "handshake") || strings.Contains(s, "certificate")) {
		return Diag{Code: "tls", Hint: "TLS negotiation failed; verify the server certificate"}
	}

	// auth (credenciales/permiso)
	if strings.Contains(s, "5.7.8") || strings.Contains(s, "535") || strings.Contains(s, "534") ||
		strings.Contains(s, "username and password not accepted") ||
		strings.Contains(s, "authentication failed") {
		return Diag{Code: "auth", Hint: "check App Password"}
	}

	// rate limit / throttling temporal (4.x.x)
	if strings.Contains(s, "4.7.0") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "try again later") ||
		strings.Contains(s, "temporarily unavailable") ||
		strings.Contains(s, "451") || strings.Contains(s, "421") {
		return Diag{Code: "rate_limited", Temporary: true, RetryAfter: time.Minute, Hint: "provider is throttling; retry later"}
	}

	// destinatario inválido
	if strings.Contains(s, "5.1.1") || strings.Contains(s, "user unknown") ||
		strings.Contains(s, "mailbox not found") {
		return Diag{Code: "invalid_recipient", Hint: "recipient address does not exist"}
	}

	// políticas/DMARC/SPF/rechazos 5.7.1
	if strings.Contains(s, "5.7.1") ||
		strings.Contains(s, "message rejected") ||
		strings.Contains(s, "policy") ||
		strings.Contains(s, "dmarc") || strings.Contains(s, "spf") {
		return Diag{Code: "rejected", Hint: "message rejected by policy; check SPF/DKIM/DMARC for the sender domain"}
	}

	// resto de errores de red
	if errors.As(err, &ne) {
		return Diag{Code: "network", Temporary: true}
	}
	return Diag{Code: "unknown"}
}
