package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/learnhabit/internal/cache"
	"github.com/dropDatabas3/learnhabit/internal/domain/repository"
	"github.com/dropDatabas3/learnhabit/internal/email"
	"github.com/dropDatabas3/learnhabit/internal/store/adapters/memory"
)

// ─── fakes ───

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeMailer struct {
	mu      sync.Mutex
	pins    []string
	err     error
	outcome email.Outcome
}

func (m *fakeMailer) SendPIN(_ context.Context, _, _ string, pin string, _ time.Duration) (email.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pins = append(m.pins, pin)
	if m.err != nil {
		return email.Delivery{}, m.err
	}
	o := m.outcome
	if o == "" {
		o = email.OutcomeDelivered
	}
	return email.Delivery{Outcome: o, Provider: "fake"}, nil
}

func (m *fakeMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pins[len(m.pins)-1]
}

// flakyRepo inyecta errores sobre un repo real.
type flakyRepo struct {
	repository.VerificationRepository
	putErr    error
	getErr    error
	updateErr error
	conflicts int
}

func (r *flakyRepo) Put(ctx context.Context, rec *repository.VerificationRecord) error {
	if r.putErr != nil {
		return r.putErr
	}
	return r.VerificationRepository.Put(ctx, rec)
}

func (r *flakyRepo) Get(ctx context.Context, e string) (*repository.VerificationRecord, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.VerificationRepository.Get(ctx, e)
}

func (r *flakyRepo) UpdateAttempts(ctx context.Context, e string, attempts int, verified bool, v int64) error {
	if r.conflicts > 0 {
		r.conflicts--
		return repository.ErrVersionConflict
	}
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.VerificationRepository.UpdateAttempts(ctx, e, attempts, verified, v)
}

type fixture struct {
	svc    *Service
	repo   *flakyRepo
	mailer *fakeMailer
	clock  *fakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:   &flakyRepo{VerificationRepository: memory.New(0)},
		mailer: &fakeMailer{},
		clock:  &fakeClock{t: time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)},
	}
	pins := []string{"482913", "771204", "305118", "640022"}
	next := 0
	gen := func() string {
		p := pins[next%len(pins)]
		next++
		return p
	}
	all := append([]Option{WithClock(f.clock.Now), WithPINGenerator(gen)}, opts...)
	f.svc = NewService(f.repo, f.mailer, Config{}, all...)
	return f
}

func (f *fixture) stored(t *testing.T, e string) *repository.VerificationRecord {
	t.Helper()
	rec, err := f.repo.VerificationRepository.Get(context.Background(), e)
	require.NoError(t, err)
	return rec
}

const userEmail = "user@example.com"

// ─── escenarios ───

func TestSendPIN_CreatesFreshRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SendPIN(ctx, SendRequest{Email: "  User@Example.com ", FirstName: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, userEmail, res.Email)
	assert.Equal(t, f.clock.t.Add(10*time.Minute), res.ExpiresAt)
	assert.Equal(t, email.OutcomeDelivered, res.Outcome)

	rec := f.stored(t, userEmail)
	assert.Equal(t, 0, rec.Attempts)
	assert.False(t, rec.Verified)
	assert.Equal(t, 3, rec.MaxAttempts)
	assert.Equal(t, f.mailer.last(), rec.PIN)
}

func TestVerifyPIN_ThreeMismatchesThenExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)
	correct := f.mailer.last()
	require.NotEqual(t, "000000", correct)

	for _, remaining := range []int{2, 1, 0} {
		res, err := f.svc.VerifyPIN(ctx, userEmail, "000000")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, OutcomeMismatch, res.Outcome)
		assert.Equal(t, remaining, res.AttemptsRemaining)
	}

	res, err := f.svc.VerifyPIN(ctx, userEmail, correct)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, OutcomeAttemptsExhausted, res.Outcome)
	assert.Equal(t, 3, f.stored(t, userEmail).Attempts)
}

func TestVerifyPIN_ExpiredDoesNotConsumeAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)

	f.clock.Advance(11 * time.Minute)
	res, err := f.svc.VerifyPIN(ctx, userEmail, f.mailer.last())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, OutcomeExpired, res.Outcome)
	assert.Contains(t, res.Message, "expired")
	assert.Equal(t, 0, f.stored(t, userEmail).Attempts)
}

func TestVerifyPIN_FormatErrorTouchesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)
	before := f.stored(t, userEmail)

	res, err := f.svc.VerifyPIN(ctx, userEmail, "12a456")
	assert.ErrorIs(t, err, ErrInvalidPINFormat)
	assert.Equal(t, OutcomeInvalidFormat, res.Outcome)
	assert.False(t, res.Success)

	after := f.stored(t, userEmail)
	assert.Equal(t, before.Attempts, after.Attempts)
	assert.Equal(t, before.Version, after.Version)
}

func TestVerifyPIN_SuccessIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)

	res, err := f.svc.VerifyPIN(ctx, userEmail, f.mailer.last())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, OutcomeMatched, res.Outcome)

	res, err = f.svc.VerifyPIN(ctx, userEmail, "999999")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, OutcomeAlreadyVerified, res.Outcome)

	rec := f.stored(t, userEmail)
	assert.True(t, rec.Verified)
	assert.Equal(t, 1, rec.Attempts)
}

func TestVerifyPIN_NotFound(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.VerifyPIN(context.Background(), "ghost@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Contains(t, res.Message, "request a new code")
}

func TestSendPIN_TwiceInvalidatesFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)
	first := f.mailer.last()

	f.clock.Advance(2 * time.Minute)
	_, err = f.svc.SendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)
	second := f.mailer.last()
	require.NotEqual(t, first, second)

	res, err := f.svc.VerifyPIN(ctx, userEmail, first)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMismatch, res.Outcome)

	res, err = f.svc.VerifyPIN(ctx, userEmail, second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatched, res.Outcome)
}

func TestResendPIN_Throttled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ResendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)
	before := f.stored(t, userEmail)

	f.clock.Advance(15 * time.Second)
	_, err = f.svc.ResendPIN(ctx, SendRequest{Email: userEmail})
	var te *ThrottleError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 45, te.Seconds())
	assert.Contains(t, err.Error(), "wait 45 seconds")

	after := f.stored(t, userEmail)
	assert.Equal(t, before.PIN, after.PIN)
	assert.Equal(t, before.Version, after.Version)
	assert.Len(t, f.mailer.pins, 1)

	f.clock.Advance(45 * time.Second)
	_, err = f.svc.ResendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)
	assert.NotEqual(t, before.PIN, f.stored(t, userEmail).PIN)
}

func TestResendPIN_NoRecordBehavesLikeSend(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ResendPIN(context.Background(), SendRequest{Email: userEmail})
	require.NoError(t, err)
	assert.Equal(t, userEmail, res.Email)
}

func TestSendPIN_StoreFailureSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.repo.putErr = errors.New("db down")

	_, err := f.svc.SendPIN(context.Background(), SendRequest{Email: userEmail})
	assert.ErrorIs(t, err, ErrIssueFailed)
	assert.Empty(t, f.mailer.pins)
}

func TestSendPIN_DeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("fallback sink broken")

	_, err := f.svc.SendPIN(context.Background(), SendRequest{Email: userEmail})
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}

func TestSendPIN_LoggedFallbackIsSuccess(t *testing.T) {
	tpl, err := email.NewTemplates("", "")
	require.NoError(t, err)
	mailer := email.NewPINMailer(email.NewTransport(), tpl)

	svc := NewService(memory.New(0), mailer, Config{})
	res, err := svc.SendPIN(context.Background(), SendRequest{Email: userEmail})
	require.NoError(t, err)
	assert.Equal(t, email.OutcomeLoggedFallback, res.Outcome)
}

func TestSendPIN_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	for _, bad := range []string{"", "   ", "not-an-email", "Ana <ana@example.com>", "a@"} {
		_, err := f.svc.SendPIN(context.Background(), SendRequest{Email: bad})
		assert.ErrorIs(t, err, ErrInvalidEmail, bad)
	}
	assert.Empty(t, f.mailer.pins)
}

func TestVerifyPIN_LookupFailureIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.repo.getErr = errors.New("timeout")
	res, err := f.svc.VerifyPIN(context.Background(), userEmail, "123456")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
}

func TestVerifyPIN_RereadsOnVersionConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)

	f.repo.conflicts = 2
	res, err := f.svc.VerifyPIN(ctx, userEmail, "000000")
	require.NoError(t, err)
	assert.Equal(t, OutcomeMismatch, res.Outcome)
	assert.Equal(t, 1, f.stored(t, userEmail).Attempts)
}

func TestVerifyPIN_UpdateFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)

	f.repo.updateErr = errors.New("write failed")
	res, err := f.svc.VerifyPIN(ctx, userEmail, f.mailer.last())
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatched, res.Outcome)
}

type stubTickets struct{}

func (stubTickets) Issue(e string) (string, time.Time, error) {
	return "ticket-for-" + e, time.Time{}, nil
}

func TestIsEmailVerified_CacheAndNewIssuance(t *testing.T) {
	c := cache.NewMemory("test")
	f := newFixture(t, WithVerifiedCache(c), WithTickets(stubTickets{}))
	ctx := context.Background()

	assert.False(t, f.svc.IsEmailVerified(ctx, userEmail))

	_, err := f.svc.SendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)
	res, err := f.svc.VerifyPIN(ctx, userEmail, f.mailer.last())
	require.NoError(t, err)
	assert.Equal(t, "ticket-for-"+userEmail, res.Ticket)

	assert.True(t, f.svc.IsEmailVerified(ctx, "USER@example.com"))
	v, err := c.Get(ctx, "verified:"+userEmail)
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	// un PIN nuevo reemplaza el registro verificado
	f.clock.Advance(2 * time.Minute)
	_, err = f.svc.SendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)
	assert.False(t, f.svc.IsEmailVerified(ctx, userEmail))
}

func TestIsEmailVerified_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.svc.IsEmailVerified(context.Background(), "nope"))
}

// pausingRepo detiene un Get (después de leer) hasta que el test lo libera.
type pausingRepo struct {
	repository.VerificationRepository
	mu      sync.Mutex
	armed   bool
	paused  chan struct{}
	release chan struct{}
}

func (r *pausingRepo) arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = true
	r.paused = make(chan struct{})
	r.release = make(chan struct{})
}

func (r *pausingRepo) Get(ctx context.Context, e string) (*repository.VerificationRecord, error) {
	rec, err := r.VerificationRepository.Get(ctx, e)
	r.mu.Lock()
	hold := r.armed
	r.armed = false
	paused, release := r.paused, r.release
	r.mu.Unlock()
	if hold {
		close(paused)
		<-release
	}
	return rec, err
}

func TestIsEmailVerified_ReissueDuringVerifyClearsCache(t *testing.T) {
	c := cache.NewMemory("test")
	repo := &pausingRepo{VerificationRepository: memory.New(0)}
	mailer := &fakeMailer{}
	clock := &fakeClock{t: time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)}
	pins := []string{"482913", "771204"}
	next := 0
	gen := func() string {
		p := pins[next%len(pins)]
		next++
		return p
	}
	svc := NewService(repo, mailer, Config{}, WithClock(clock.Now), WithPINGenerator(gen), WithVerifiedCache(c))
	ctx := context.Background()

	_, err := svc.SendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)
	res, err := svc.VerifyPIN(ctx, userEmail, "482913")
	require.NoError(t, err)
	require.Equal(t, OutcomeMatched, res.Outcome)

	// el verify lee el registro verificado y queda frenado antes de cachear
	repo.arm()
	done := make(chan VerifyResult, 1)
	go func() {
		r, _ := svc.VerifyPIN(ctx, userEmail, "482913")
		done <- r
	}()
	<-repo.paused

	_, err = svc.SendPIN(ctx, SendRequest{Email: userEmail})
	require.NoError(t, err)
	close(repo.release)
	late := <-done
	assert.Equal(t, OutcomeAlreadyVerified, late.Outcome)

	rec, err := repo.VerificationRepository.Get(ctx, userEmail)
	require.NoError(t, err)
	assert.False(t, rec.Verified)
	assert.Equal(t, "771204", rec.PIN)

	_, err = c.Get(ctx, "verified:"+userEmail)
	assert.True(t, cache.IsNotFound(err))
	assert.False(t, svc.IsEmailVerified(ctx, userEmail))
}
