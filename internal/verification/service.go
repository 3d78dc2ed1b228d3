package verification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/learnhabit/internal/audit"
	"github.com/dropDatabas3/learnhabit/internal/cache"
	"github.com/dropDatabas3/learnhabit/internal/domain/repository"
	"github.com/dropDatabas3/learnhabit/internal/email"
	"github.com/dropDatabas3/learnhabit/internal/metrics"
	"github.com/dropDatabas3/learnhabit/internal/observability/logger"
)

const (
	DefaultPINTTL      = 10 * time.Minute
	DefaultMaxAttempts = 3

	// maxVerifyRounds acota las relecturas ante conflictos de versión.
	maxVerifyRounds = 3

	verifiedCachePrefix = "verified:"
	maxEmailLength      = 254
)

// PINMailer envía el email con el PIN.
type PINMailer interface {
	SendPIN(ctx context.Context, to, firstName, pin string, ttl time.Duration) (email.Delivery, error)
}

// TicketIssuer firma el ticket de email verificado.
type TicketIssuer interface {
	Issue(email string) (string, time.Time, error)
}

// Config de políticas del servicio.
type Config struct {
	PINTTL           time.Duration // default 10m
	MaxAttempts      int           // default 3
	ResendCooldown   time.Duration // default 60s
	VerifiedCacheTTL time.Duration // default 10m
}

// SendRequest es la entrada de SendPIN/ResendPIN.
type SendRequest struct {
	Email     string
	FirstName string
}

// SendResult describe un PIN emitido.
type SendResult struct {
	Email     string
	ExpiresAt time.Time
	Outcome   email.Outcome
	Provider  string
}

// VerifyResult es el resultado de VerifyPIN. Ticket solo se completa en éxito.
type VerifyResult struct {
	Outcome           Outcome
	Success           bool
	Message           string
	AttemptsRemaining int
	Ticket            string
	TicketExpiresAt   time.Time
}

// Service implementa las operaciones de verificación.
type Service struct {
	repo     repository.VerificationRepository
	mailer   PINMailer
	cache    cache.Client
	tickets  TicketIssuer
	cfg      Config
	throttle Throttle

	now    func() time.Time
	genPIN func() string
	sf     singleflight.Group
}

// Option configura dependencias opcionales.
type Option func(*Service)

// WithClock reemplaza time.Now (tests con reloj simulado).
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithPINGenerator reemplaza GeneratePIN.
func WithPINGenerator(f func() string) Option { return func(s *Service) { s.genPIN = f } }

// WithVerifiedCache habilita el cache de emails verificados.
func WithVerifiedCache(c cache.Client) Option { return func(s *Service) { s.cache = c } }

// WithTickets habilita la emisión de tickets al verificar.
func WithTickets(t TicketIssuer) Option { return func(s *Service) { s.tickets = t } }

// NewService crea el servicio aplicando defaults a cfg.
func NewService(repo repository.VerificationRepository, mailer PINMailer, cfg Config, opts ...Option) *Service {
	if cfg.PINTTL <= 0 {
		cfg.PINTTL = DefaultPINTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = DefaultResendCooldown
	}
	if cfg.VerifiedCacheTTL <= 0 {
		cfg.VerifiedCacheTTL = 10 * time.Minute
	}
	s := &Service{
		repo:     repo,
		mailer:   mailer,
		cfg:      cfg,
		throttle: Throttle{Cooldown: cfg.ResendCooldown},
		now:      time.Now,
		genPIN:   GeneratePIN,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NormalizeAddress normaliza y valida un email. Solo acepta la dirección
// desnuda (sin nombre ni <>).
func NormalizeAddress(raw string) (string, error) {
	e := repository.NormalizeEmail(raw)
	if e == "" || len(e) > maxEmailLength {
		return "", ErrInvalidEmail
	}
	a, err := mail.ParseAddress(e)
	if err != nil || a.Address != e {
		return "", ErrInvalidEmail
	}
	return e, nil
}

// SendPIN emite un PIN nuevo (reemplaza el anterior) y lo envía.
// Las llamadas concurrentes para el mismo email en este proceso comparten el resultado.
func (s *Service) SendPIN(ctx context.Context, req SendRequest) (SendResult, error) {
	addr, err := NormalizeAddress(req.Email)
	if err != nil {
		return SendResult{}, err
	}
	return s.issue(ctx, addr, req.FirstName)
}

// ResendPIN aplica el cooldown y luego se comporta como SendPIN.
func (s *Service) ResendPIN(ctx context.Context, req SendRequest) (SendResult, error) {
	addr, err := NormalizeAddress(req.Email)
	if err != nil {
		return SendResult{}, err
	}

	if wait, ok := s.throttle.Check(s.lookup(ctx, addr), s.now()); !ok {
		metrics.RecordPINIssued("throttled")
		return SendResult{}, &ThrottleError{RetryAfter: wait}
	}
	return s.issue(ctx, addr, req.FirstName)
}

func (s *Service) issue(ctx context.Context, addr, firstName string) (SendResult, error) {
	v, err, shared := s.sf.Do(addr, func() (any, error) {
		return s.issueOnce(ctx, addr, firstName)
	})
	if shared {
		logger.From(ctx).Debug("concurrent send collapsed", logger.Op("send_pin"))
	}
	res, _ := v.(SendResult)
	return res, err
}

func (s *Service) issueOnce(ctx context.Context, addr, firstName string) (SendResult, error) {
	log := logger.From(ctx).With(logger.Component("verification"), logger.Op("send_pin"), logger.MaskedEmail(addr))
	now := s.now()

	rec := &repository.VerificationRecord{
		ID:          uuid.NewString(),
		Email:       addr,
		PIN:         s.genPIN(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.PINTTL),
		MaxAttempts: s.cfg.MaxAttempts,
	}
	if err := s.repo.Put(ctx, rec); err != nil {
		metrics.RecordStoreError("put")
		metrics.RecordPINIssued("store_failed")
		log.Error("could not persist verification record", logger.Err(err))
		return SendResult{}, fmt.Errorf("%w: %v", ErrIssueFailed, err)
	}
	s.forgetVerified(ctx, addr)

	// El envío corre hasta terminar (o su propio timeout) aunque el caller se vaya
	d, err := s.mailer.SendPIN(context.WithoutCancel(ctx), addr, firstName, rec.PIN, s.cfg.PINTTL)
	if err != nil {
		metrics.RecordPINIssued("delivery_failed")
		log.Error("verification email not delivered", logger.Err(err))
		return SendResult{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	metrics.RecordPINIssued("issued")
	log.Info("verification code issued",
		logger.Outcome(string(d.Outcome)),
		logger.Provider(d.Provider),
	)
	audit.Log(ctx, audit.EventPINIssued, addr, logger.Outcome(string(d.Outcome)))
	return SendResult{Email: addr, ExpiresAt: rec.ExpiresAt, Outcome: d.Outcome, Provider: d.Provider}, nil
}

// VerifyPIN evalúa pin contra el registro vigente. Solo devuelve error para
// entradas inválidas; los rechazos por política van en VerifyResult.
func (s *Service) VerifyPIN(ctx context.Context, emailAddr, pin string) (VerifyResult, error) {
	addr, err := NormalizeAddress(emailAddr)
	if err != nil {
		return VerifyResult{Outcome: OutcomeInvalidFormat, Message: err.Error()}, err
	}
	if !ValidPINFormat(pin) {
		metrics.RecordPINVerify(string(OutcomeInvalidFormat))
		d := Decision{Outcome: OutcomeInvalidFormat}
		return VerifyResult{Outcome: d.Outcome, Message: d.Message()}, ErrInvalidPINFormat
	}

	log := logger.From(ctx).With(logger.Component("verification"), logger.Op("verify_pin"), logger.MaskedEmail(addr))

	var (
		d   Decision
		rec *repository.VerificationRecord
	)
	for round := 0; round < maxVerifyRounds; round++ {
		rec = s.lookup(ctx, addr)
		d = Evaluate(rec, pin, s.now())
		if !d.Persist {
			break
		}

		err := s.repo.UpdateAttempts(ctx, addr, d.Attempts, d.Verified, rec.Version)
		if err == nil {
			break
		}
		if repository.IsVersionConflict(err) {
			log.Debug("record changed while verifying, re-reading", logger.Int("round", round+1))
			if round == maxVerifyRounds-1 {
				log.Warn("verification record kept changing; attempt not persisted")
			}
			continue
		}
		// best effort: el outcome se devuelve igual
		metrics.RecordStoreError("update")
		log.Warn("could not persist verification attempt", logger.Err(err))
		break
	}

	metrics.RecordPINVerify(string(d.Outcome))
	res := VerifyResult{
		Outcome:           d.Outcome,
		Success:           d.Outcome.Success(),
		Message:           d.Message(),
		AttemptsRemaining: d.AttemptsRemaining,
	}
	if res.Success {
		s.rememberVerified(ctx, addr, rec)
		if s.tickets != nil {
			tk, exp, err := s.tickets.Issue(addr)
			if err != nil {
				log.Warn("could not issue verification ticket", logger.Err(err))
			} else {
				res.Ticket, res.TicketExpiresAt = tk, exp
			}
		}
	}
	log.Info("verification evaluated", logger.Outcome(string(d.Outcome)), logger.Attempts(d.Attempts))
	switch {
	case d.Outcome == OutcomeMatched:
		audit.Log(ctx, audit.EventEmailVerified, addr, logger.Attempts(d.Attempts))
	case d.Outcome == OutcomeMismatch && d.AttemptsRemaining == 0:
		audit.Log(ctx, audit.EventAttemptsExhausted, addr, logger.Attempts(d.Attempts))
	}
	return res, nil
}

// IsEmailVerified consulta el cache y, si no está, el registro vigente.
func (s *Service) IsEmailVerified(ctx context.Context, emailAddr string) bool {
	addr, err := NormalizeAddress(emailAddr)
	if err != nil {
		return false
	}
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, verifiedCachePrefix+addr); err == nil && v == "1" {
			return true
		}
	}
	rec := s.lookup(ctx, addr)
	if rec == nil || !rec.Verified {
		return false
	}
	s.rememberVerified(ctx, addr, rec)
	return true
}

// lookup trata cualquier error de lectura como "sin registro".
func (s *Service) lookup(ctx context.Context, addr string) *repository.VerificationRecord {
	rec, err := s.repo.Get(ctx, addr)
	if err != nil {
		if !repository.IsNotFound(err) {
			metrics.RecordStoreError("get")
			logger.From(ctx).Warn("verification record lookup failed",
				logger.Component("verification"),
				logger.Err(err),
			)
		}
		return nil
	}
	return rec
}

// rememberVerified cachea el estado de rec y relee el registro: si un envío lo
// reemplazó mientras tanto, borra la entrada. El envío hace Put y después
// Delete, así que la última escritura sobre la clave nunca es un "1" viejo.
func (s *Service) rememberVerified(ctx context.Context, addr string, rec *repository.VerificationRecord) {
	if s.cache == nil || rec == nil {
		return
	}
	if err := s.cache.Set(ctx, verifiedCachePrefix+addr, "1", s.cfg.VerifiedCacheTTL); err != nil {
		logger.From(ctx).Debug("verified cache set failed", logger.Err(err))
		return
	}
	cur := s.lookup(ctx, addr)
	if cur == nil || cur.ID != rec.ID || !cur.Verified {
		s.forgetVerified(ctx, addr)
	}
}

func (s *Service) forgetVerified(ctx context.Context, addr string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, verifiedCachePrefix+addr); err != nil {
		logger.From(ctx).Debug("verified cache delete failed", logger.Err(err))
	}
}

// Ping verifica el store (readiness).
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
