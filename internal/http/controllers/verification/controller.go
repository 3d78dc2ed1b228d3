// Package verification expone las operaciones de verificación por PIN sobre HTTP.
package verification

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	dto "github.com/dropDatabas3/learnhabit/internal/http/dto/verification"
	httperrors "github.com/dropDatabas3/learnhabit/internal/http/errors"
	"github.com/dropDatabas3/learnhabit/internal/http/helpers"
	"github.com/dropDatabas3/learnhabit/internal/observability/logger"
	svc "github.com/dropDatabas3/learnhabit/internal/verification"
)

// Service es lo que el controller necesita de verification.Service.
type Service interface {
	SendPIN(ctx context.Context, req svc.SendRequest) (svc.SendResult, error)
	ResendPIN(ctx context.Context, req svc.SendRequest) (svc.SendResult, error)
	VerifyPIN(ctx context.Context, email, pin string) (svc.VerifyResult, error)
	IsEmailVerified(ctx context.Context, email string) bool
}

// TicketParser valida tickets emitidos al verificar.
type TicketParser interface {
	Parse(token string) (string, error)
}

type Controller struct {
	service Service
	tickets TicketParser
}

// NewController crea el controller. tickets puede ser nil: /ticket/verify
// responde valid=false.
func NewController(service Service, tickets TicketParser) *Controller {
	return &Controller{service: service, tickets: tickets}
}

// Send maneja POST /v1/email-verification/send
func (c *Controller) Send(w http.ResponseWriter, r *http.Request) {
	var req dto.SendRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	res, err := c.service.SendPIN(r.Context(), svc.SendRequest{Email: req.Email, FirstName: req.FirstName})
	c.writeSend(w, r, res, err)
}

// Resend maneja POST /v1/email-verification/resend
func (c *Controller) Resend(w http.ResponseWriter, r *http.Request) {
	var req dto.SendRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	res, err := c.service.ResendPIN(r.Context(), svc.SendRequest{Email: req.Email, FirstName: req.FirstName})
	c.writeSend(w, r, res, err)
}

func (c *Controller) writeSend(w http.ResponseWriter, r *http.Request, res svc.SendResult, err error) {
	if err == nil {
		exp := res.ExpiresAt.UTC()
		helpers.WriteJSON(w, http.StatusOK, dto.SendResponse{Success: true, ExpiresAt: &exp})
		return
	}

	var te *svc.ThrottleError
	if errors.As(err, &te) {
		secs := te.Seconds()
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		ae := httperrors.ErrResendTooSoon.WithMessage(te.Error())
		helpers.WriteJSON(w, ae.HTTPStatus, dto.SendResponse{
			Error:             ae.Message,
			Code:              ae.Code,
			RetryAfterSeconds: secs,
		})
		return
	}

	ae := mapSendError(err)
	if ae.HTTPStatus >= http.StatusInternalServerError {
		logger.From(r.Context()).Error("send pin failed", logger.Op("VerificationController.Send"), logger.Err(err))
	}
	helpers.WriteJSON(w, ae.HTTPStatus, dto.SendResponse{Error: ae.Message, Code: ae.Code})
}

func mapSendError(err error) *httperrors.AppError {
	switch {
	case errors.Is(err, svc.ErrInvalidEmail):
		return httperrors.ErrInvalidEmail
	case errors.Is(err, svc.ErrIssueFailed):
		return httperrors.ErrIssueFailed.WithCause(err)
	case errors.Is(err, svc.ErrDeliveryFailed):
		return httperrors.ErrDeliveryFailed.WithCause(err)
	default:
		return httperrors.ErrInternalServerError.WithCause(err)
	}
}

// Verify maneja POST /v1/email-verification/verify
func (c *Controller) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	res, err := c.service.VerifyPIN(r.Context(), req.Email, req.PIN)
	if err != nil {
		ae := httperrors.ErrInternalServerError
		switch {
		case errors.Is(err, svc.ErrInvalidEmail):
			ae = httperrors.ErrInvalidEmail
		case errors.Is(err, svc.ErrInvalidPINFormat):
			ae = httperrors.ErrInvalidPINFormat
		}
		helpers.WriteJSON(w, ae.HTTPStatus, dto.VerifyResponse{Error: ae.Message, Code: ae.Code})
		return
	}

	if res.Success {
		out := dto.VerifyResponse{Success: true, Message: res.Message, Ticket: res.Ticket}
		if res.Ticket != "" {
			exp := res.TicketExpiresAt.UTC()
			out.TicketExpiresAt = &exp
		}
		helpers.WriteJSON(w, http.StatusOK, out)
		return
	}

	out := dto.VerifyResponse{Error: res.Message}
	var ae *httperrors.AppError
	switch res.Outcome {
	case svc.OutcomeNotFound:
		ae = httperrors.ErrVerificationNotFound
	case svc.OutcomeExpired:
		ae = httperrors.ErrPINExpired
	case svc.OutcomeAttemptsExhausted:
		ae = httperrors.ErrAttemptsExhausted
		out.AttemptsRemaining = intPtr(0)
	case svc.OutcomeMismatch:
		ae = httperrors.ErrPINMismatch
		out.AttemptsRemaining = intPtr(res.AttemptsRemaining)
	default:
		ae = httperrors.ErrInternalServerError
	}
	out.Code = ae.Code
	helpers.WriteJSON(w, ae.HTTPStatus, out)
}

// Status maneja GET /v1/email-verification/status?email=
func (c *Controller) Status(w http.ResponseWriter, r *http.Request) {
	addr, err := svc.NormalizeAddress(r.URL.Query().Get("email"))
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidEmail)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{
		Email:    addr,
		Verified: c.service.IsEmailVerified(r.Context(), addr),
	})
}

// VerifyTicket maneja POST /v1/email-verification/ticket/verify
func (c *Controller) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	var req dto.TicketVerifyRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Ticket) == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("ticket"))
		return
	}
	if c.tickets == nil {
		helpers.WriteJSON(w, http.StatusOK, dto.TicketVerifyResponse{Error: "tickets are not enabled"})
		return
	}
	addr, err := c.tickets.Parse(strings.TrimSpace(req.Ticket))
	if err != nil {
		logger.From(r.Context()).Debug("ticket rejected", logger.Err(err))
		helpers.WriteJSON(w, http.StatusOK, dto.TicketVerifyResponse{Error: "invalid or expired ticket"})
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.TicketVerifyResponse{Valid: true, Email: addr})
}

func intPtr(n int) *int { return &n }
