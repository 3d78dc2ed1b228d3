package ticket

import (
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	iss, err := NewIssuer("s3cret", "learnhabit", 0)
	require.NoError(t, err)

	tok, exp, err := iss.Issue("ana@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), exp, 5*time.Second)

	email, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", email)
}

func TestParse_Expired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	iss, err := NewIssuer("s3cret", "", time.Minute)
	require.NoError(t, err)
	iss.WithClock(func() time.Time { return now })

	tok, _, err := iss.Issue("ana@example.com")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = iss.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestParse_OtherSecretRejected(t *testing.T) {
	a, _ := NewIssuer("one", "", 0)
	b, _ := NewIssuer("two", "", 0)

	tok, _, err := a.Issue("ana@example.com")
	require.NoError(t, err)
	_, err = b.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestParse_WrongPurpose(t *testing.T) {
	iss, _ := NewIssuer("s3cret", "", 0)

	claims := Claims{
		Purpose: "password_reset",
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   "ana@example.com",
			ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	tok, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(iss.key)
	require.NoError(t, err)

	_, err = iss.Parse(tok)
	assert.ErrorIs(t, err, ErrWrongPurpose)
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer("  ", "", 0)
	assert.ErrorIs(t, err, ErrNoSecret)
}
