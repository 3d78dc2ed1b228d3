// Package ticket emite y valida el ticket de "email verificado" que el flujo
// de registro presenta como prueba. Es un JWT HS256 con purpose=email_verified.
package ticket

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	Purpose    = "email_verified"
	DefaultTTL = 30 * time.Minute

	hkdfInfo = "learnhabit/email-verification-ticket/v1"
	keyLen   = 32
)

var (
	ErrNoSecret      = errors.New("ticket: secret is required")
	ErrInvalidTicket = errors.New("ticket: invalid")
	ErrWrongPurpose  = errors.New("ticket: wrong purpose")
)

// Claims del ticket.
type Claims struct {
	Purpose string `json:"purpose"`
	jwtv5.RegisteredClaims
}

// Issuer firma y valida tickets con una clave derivada del secreto.
type Issuer struct {
	key []byte
	iss string
	ttl time.Duration
	now func() time.Time
}

// NewIssuer deriva la clave de firma con HKDF-SHA256.
func NewIssuer(secret, iss string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("ticket: derive key: %w", err)
	}
	return &Issuer{key: key, iss: iss, ttl: ttl, now: time.Now}, nil
}

// WithClock reemplaza el reloj (tests).
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue firma un ticket para email.
func (i *Issuer) Issue(email string) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := Claims{
		Purpose: Purpose,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.iss,
			Subject:   email,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse valida firma, expiración y purpose y devuelve el email.
func (i *Issuer) Parse(token string) (string, error) {
	var claims Claims
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithTimeFunc(i.now),
		jwtv5.WithExpirationRequired(),
	}
	if i.iss != "" {
		opts = append(opts, jwtv5.WithIssuer(i.iss))
	}
	tok, err := jwtv5.ParseWithClaims(token, &claims, func(*jwtv5.Token) (any, error) {
		return i.key, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if claims.Purpose != Purpose {
		return "", ErrWrongPurpose
	}
	return claims.Subject, nil
}
