package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthctrl "github.com/dropDatabas3/learnhabit/internal/http/controllers/health"
	verifyctrl "github.com/dropDatabas3/learnhabit/internal/http/controllers/verification"
	"github.com/dropDatabas3/learnhabit/internal/email"
	"github.com/dropDatabas3/learnhabit/internal/rate"
	"github.com/dropDatabas3/learnhabit/internal/security/ticket"
	"github.com/dropDatabas3/learnhabit/internal/store/adapters/memory"
	"github.com/dropDatabas3/learnhabit/internal/verification"
)

type captureMailer struct {
	mu  sync.Mutex
	pin string
}

func (m *captureMailer) SendPIN(_ context.Context, _, _ string, pin string, _ time.Duration) (email.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pin = pin
	return email.Delivery{Outcome: email.OutcomeDelivered, Provider: "test"}, nil
}

func (m *captureMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pin
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type env struct {
	srv    *httptest.Server
	mailer *captureMailer
	clock  *clock
}

func newEnv(t *testing.T, limiter rate.Limiter) *env {
	t.Helper()
	e := &env{mailer: &captureMailer{}, clock: &clock{t: time.Now()}}

	repo := memory.New(0)
	tickets, err := ticket.NewIssuer("0123456789abcdef0123456789abcdef", "learnhabit-test", 0)
	require.NoError(t, err)

	svc := verification.NewService(repo, e.mailer, verification.Config{},
		verification.WithClock(e.clock.Now),
		verification.WithTickets(tickets),
	)
	h := New(Deps{
		Verification: verifyctrl.NewController(svc, tickets),
		Health:       healthctrl.NewController(map[string]healthctrl.Pinger{"store": repo}),
		RateLimiter:  limiter,
	})
	e.srv = httptest.NewServer(h)
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (e *env) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

const base = "/v1/email-verification"

func TestFlow_SendVerifyStatusTicket(t *testing.T) {
	e := newEnv(t, nil)

	resp, body := e.post(t, base+"/send", map[string]string{"email": "Learner@Example.com", "first_name": "Ana"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["expires_at"])
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, body = e.get(t, base+"/status?email=learner@example.com")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["verified"])

	resp, body = e.post(t, base+"/verify", map[string]string{"email": "learner@example.com", "pin": e.mailer.last()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	tk, _ := body["ticket"].(string)
	require.NotEmpty(t, tk)

	resp, body = e.get(t, base+"/status?email=learner@example.com")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["verified"])

	resp, body = e.post(t, base+"/ticket/verify", map[string]string{"ticket": tk})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "learner@example.com", body["email"])

	_, body = e.post(t, base+"/ticket/verify", map[string]string{"ticket": tk + "x"})
	assert.Equal(t, false, body["valid"])
}

func TestVerify_StatusCodes(t *testing.T) {
	e := newEnv(t, nil)

	resp, body := e.post(t, base+"/verify", map[string]string{"email": "nobody@example.com", "pin": "123456"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "VERIFICATION_NOT_FOUND", body["code"])
	assert.Equal(t, false, body["success"])

	resp, body = e.post(t, base+"/verify", map[string]string{"email": "nobody@example.com", "pin": "12a456"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PIN_FORMAT", body["code"])

	resp, _ = e.post(t, base+"/send", map[string]string{"email": "a@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	wrong := "000000"
	if e.mailer.last() == wrong {
		wrong = "111111"
	}

	resp, body = e.post(t, base+"/verify", map[string]string{"email": "a@example.com", "pin": wrong})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INVALID_PIN", body["code"])
	assert.EqualValues(t, 2, body["attempts_remaining"])

	e.post(t, base+"/verify", map[string]string{"email": "a@example.com", "pin": wrong})
	resp, body = e.post(t, base+"/verify", map[string]string{"email": "a@example.com", "pin": wrong})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.EqualValues(t, 0, body["attempts_remaining"])

	resp, body = e.post(t, base+"/verify", map[string]string{"email": "a@example.com", "pin": e.mailer.last()})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "ATTEMPTS_EXHAUSTED", body["code"])

	// PIN nuevo, luego vence
	e.clock.Advance(2 * time.Minute)
	e.post(t, base+"/send", map[string]string{"email": "a@example.com"})
	e.clock.Advance(11 * time.Minute)
	resp, body = e.post(t, base+"/verify", map[string]string{"email": "a@example.com", "pin": e.mailer.last()})
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, "PIN_EXPIRED", body["code"])
}

func TestResend_TooSoon(t *testing.T) {
	e := newEnv(t, nil)

	resp, _ := e.post(t, base+"/resend", map[string]string{"email": "r@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	e.clock.Advance(20 * time.Second)
	resp, body := e.post(t, base+"/resend", map[string]string{"email": "r@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "40", resp.Header.Get("Retry-After"))
	assert.Equal(t, "RESEND_TOO_SOON", body["code"])
	assert.EqualValues(t, 40, body["retry_after_seconds"])
	assert.Contains(t, body["error"], "wait 40 seconds")
}

func TestBadInput(t *testing.T) {
	e := newEnv(t, nil)

	resp, body := e.post(t, base+"/send", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_EMAIL", body["code"])

	r, err := http.Post(e.srv.URL+base+"/send", "text/plain", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	resp, body = e.get(t, base+"/status?email=")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_EMAIL", body["code"])

	resp, body = e.get(t, "/v1/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ROUTE_NOT_FOUND", body["code"])
}

func TestIPRateLimit(t *testing.T) {
	e := newEnv(t, rate.NewMemoryLimiter(2, time.Minute))

	for i := 0; i < 2; i++ {
		resp, _ := e.get(t, base+"/status?email=x@example.com")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := e.get(t, base+"/status?email=x@example.com")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])

	// health no tiene rate limit
	resp, body = e.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestReadyz(t *testing.T) {
	e := newEnv(t, nil)
	resp, body := e.get(t, "/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])
}
