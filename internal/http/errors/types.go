package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la API.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Error original (causa), útil para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError convierte un error genérico en AppError. Lo que no es AppError
// termina como error interno conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// WithDetail devuelve una COPIA con detalle; no muta las variables base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithMessage devuelve una COPIA con otro mensaje para el usuario.
func (e *AppError) WithMessage(msg string) *AppError {
	newErr := *e
	newErr.Message = msg
	return &newErr
}

// WithCause devuelve una COPIA con el error original.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

// 400
var (
	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "Request body must be valid JSON.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingFields = &AppError{
		Code:       "MISSING_FIELDS",
		Message:    "Required fields are missing.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidEmail = &AppError{
		Code:       "INVALID_EMAIL",
		Message:    "Please provide a valid email address.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidPINFormat = &AppError{
		Code:       "INVALID_PIN_FORMAT",
		Message:    "PIN must be exactly 6 digits",
		HTTPStatus: http.StatusBadRequest,
	}
)

// 404 / 405
var (
	ErrRouteNotFound = &AppError{
		Code:       "ROUTE_NOT_FOUND",
		Message:    "Route not found.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrVerificationNotFound = &AppError{
		Code:       "VERIFICATION_NOT_FOUND",
		Message:    "No verification code found for this email. Please request a new code.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Method not allowed.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
)

// 410 / 422
var (
	ErrPINExpired = &AppError{
		Code:       "PIN_EXPIRED",
		Message:    "Verification code has expired. Please request a new code.",
		HTTPStatus: http.StatusGone,
	}

	ErrPINMismatch = &AppError{
		Code:       "INVALID_PIN",
		Message:    "Invalid verification code.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	ErrAttemptsExhausted = &AppError{
		Code:       "ATTEMPTS_EXHAUSTED",
		Message:    "Too many failed attempts. Please request a new code.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
)

// 429
var (
	ErrResendTooSoon = &AppError{
		Code:       "RESEND_TOO_SOON",
		Message:    "Please wait before requesting a new code.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests. Please try again later.",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// 5xx
var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Something went wrong. Please try again.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrIssueFailed = &AppError{
		Code:       "ISSUE_FAILED",
		Message:    "Could not create a verification code. Please try again.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrDeliveryFailed = &AppError{
		Code:       "DELIVERY_FAILED",
		Message:    "Could not send the verification email. Please try again.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Service temporarily unavailable.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
