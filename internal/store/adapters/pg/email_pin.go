package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/learnhabit/internal/domain/repository"
)

// verificationRepo implementa repository.VerificationRepository sobre la tabla
// email_verification_pin.
type verificationRepo struct {
	db DB
}

// New construye el repositorio sobre un pool ya abierto.
func New(db DB) repository.VerificationRepository {
	return &verificationRepo{db: db}
}

const upsertSQL = `
	INSERT INTO email_verification_pin
		(id, email, pin, created_at, expires_at, attempts, max_attempts, verified, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
	ON CONFLICT (email) DO UPDATE SET
		id = EXCLUDED.id,
		pin = EXCLUDED.pin,
		created_at = EXCLUDED.created_at,
		expires_at = EXCLUDED.expires_at,
		attempts = EXCLUDED.attempts,
		max_attempts = EXCLUDED.max_attempts,
		verified = EXCLUDED.verified,
		version = email_verification_pin.version + 1
	RETURNING version`

func (r *verificationRepo) Put(ctx context.Context, rec *repository.VerificationRecord) error {
	if rec == nil || rec.Email == "" {
		return repository.ErrInvalidInput
	}
	email := repository.NormalizeEmail(rec.Email)

	var version int64
	err := r.db.QueryRow(ctx, upsertSQL,
		rec.ID, email, rec.PIN, rec.CreatedAt, rec.ExpiresAt,
		rec.Attempts, rec.MaxAttempts, rec.Verified,
	).Scan(&version)
	if err != nil {
		return fmt.Errorf("pg: upsert verification pin: %w", err)
	}
	rec.Email = email
	rec.Version = version
	return nil
}

const selectSQL = `
	SELECT id, email, pin, created_at, expires_at, attempts, max_attempts, verified, version
	FROM email_verification_pin
	WHERE email = $1`

func (r *verificationRepo) Get(ctx context.Context, email string) (*repository.VerificationRecord, error) {
	var rec repository.VerificationRecord
	err := r.db.QueryRow(ctx, selectSQL, repository.NormalizeEmail(email)).Scan(
		&rec.ID, &rec.Email, &rec.PIN, &rec.CreatedAt, &rec.ExpiresAt,
		&rec.Attempts, &rec.MaxAttempts, &rec.Verified, &rec.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get verification pin: %w", err)
	}
	return &rec, nil
}

const updateAttemptsSQL = `
	UPDATE email_verification_pin
	SET attempts = $2, verified = verified OR $3, version = version + 1
	WHERE email = $1 AND version = $4`

const existsSQL = `SELECT EXISTS (SELECT 1 FROM email_verification_pin WHERE email = $1)`

func (r *verificationRepo) UpdateAttempts(ctx context.Context, email string, attempts int, verified bool, expectedVersion int64) error {
	email = repository.NormalizeEmail(email)

	tag, err := r.db.Exec(ctx, updateAttemptsSQL, email, attempts, verified, expectedVersion)
	if err != nil {
		return fmt.Errorf("pg: update attempts: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Sin filas: o no existe o la versión cambió
	var exists bool
	if err := r.db.QueryRow(ctx, existsSQL, email).Scan(&exists); err != nil {
		return fmt.Errorf("pg: check existence: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrVersionConflict
}

func (r *verificationRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *verificationRepo) Close() error {
	r.db.Close()
	return nil
}
