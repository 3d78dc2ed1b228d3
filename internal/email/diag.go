package email

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/learnhabit/internal/email/smtp"
)

// Diagnosis clasifica el error de un provider para loguear una pista accionable.
type Diagnosis struct {
	Code      string
	Hint      string
	Temporary bool
}

// Diagnose usa el status HTTP para las APIs y DiagnoseSMTP para el resto.
func Diagnose(err error) Diagnosis {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return ClassifyHTTP(apiErr.Status)
	}
	d := smtp.DiagnoseSMTP(err)
	return Diagnosis{Code: d.Code, Hint: d.Hint, Temporary: d.Temporary}
}

// ClassifyHTTP traduce el status de una API transaccional.
func ClassifyHTTP(status int) Diagnosis {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Diagnosis{Code: "auth", Hint: "check the provider API key and its sending permissions"}
	case status == http.StatusTooManyRequests:
		return Diagnosis{Code: "rate_limited", Hint: "provider quota exceeded; retry later", Temporary: true}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return Diagnosis{Code: "rejected", Hint: "payload rejected; verify the sender domain and from address"}
	case status >= 500:
		return Diagnosis{Code: "unavailable", Hint: "provider outage", Temporary: true}
	default:
		return Diagnosis{Code: "unknown"}
	}
}
