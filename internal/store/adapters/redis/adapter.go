// Package redis implementa el adapter Redis de registros de verificación.
// Cada registro es un JSON bajo <prefix>:evpin:<email> con TTL de retención.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/learnhabit/internal/domain/repository"
	"github.com/dropDatabas3/learnhabit/internal/store"
)

func init() {
	store.RegisterAdapter(&redisAdapter{})
}

// maxTxRetries acota los reintentos de Put cuando otro escritor toca la key
// entre WATCH y EXEC.
const maxTxRetries = 5

type redisAdapter struct{}

func (a *redisAdapter) Name() string { return "redis" }

func (a *redisAdapter) Open(ctx context.Context, cfg store.AdapterConfig) (repository.VerificationRepository, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return New(rdb, cfg.Prefix, cfg.Retention), nil
}

// Repo implementa repository.VerificationRepository sobre Redis.
type Repo struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

// New construye el repositorio sobre un cliente ya conectado.
func New(rdb *redis.Client, prefix string, retention time.Duration) *Repo {
	return &Repo{rdb: rdb, prefix: prefix, retention: retention}
}

// wireRecord es la forma serializada en Redis.
type wireRecord struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	PIN         string    `json:"pin"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	Verified    bool      `json:"verified"`
	Version     int64     `json:"version"`
}

func toWire(r *repository.VerificationRecord) wireRecord {
	return wireRecord{
		ID: r.ID, Email: r.Email, PIN: r.PIN,
		CreatedAt: r.CreatedAt, ExpiresAt: r.ExpiresAt,
		Attempts: r.Attempts, MaxAttempts: r.MaxAttempts,
		Verified: r.Verified, Version: r.Version,
	}
}

func (w wireRecord) toDomain() *repository.VerificationRecord {
	return &repository.VerificationRecord{
		ID: w.ID, Email: w.Email, PIN: w.PIN,
		CreatedAt: w.CreatedAt, ExpiresAt: w.ExpiresAt,
		Attempts: w.Attempts, MaxAttempts: w.MaxAttempts,
		Verified: w.Verified, Version: w.Version,
	}
}

func (r *Repo) key(email string) string {
	if r.prefix == "" {
		return "evpin:" + email
	}
	return r.prefix + ":evpin:" + email
}

func readWire(ctx context.Context, c redis.Cmdable, key string) (*wireRecord, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("redis: decode record: %w", err)
	}
	return &w, nil
}

func (r *Repo) Put(ctx context.Context, rec *repository.VerificationRecord) error {
	if rec == nil || rec.Email == "" {
		return repository.ErrInvalidInput
	}
	email := repository.NormalizeEmail(rec.Email)
	key := r.key(email)

	var version int64
	txf := func(tx *redis.Tx) error {
		version = 1
		prev, err := readWire(ctx, tx, key)
		switch {
		case err == nil:
			version = prev.Version + 1
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		w := toWire(rec)
		w.Email = email
		w.Version = version
		payload, err := json.Marshal(w)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, r.retention)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			rec.Email = email
			rec.Version = version
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("redis: put record: %w", err)
		}
	}
	return fmt.Errorf("redis: put record: %w", repository.ErrVersionConflict)
}

func (r *Repo) Get(ctx context.Context, email string) (*repository.VerificationRecord, error) {
	w, err := readWire(ctx, r.rdb, r.key(repository.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("redis: get record: %w", err)
	}
	return w.toDomain(), nil
}

func (r *Repo) UpdateAttempts(ctx context.Context, email string, attempts int, verified bool, expectedVersion int64) error {
	key := r.key(repository.NormalizeEmail(email))

	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		w, err := readWire(ctx, tx, key)
		if err != nil {
			return err
		}
		if w.Version != expectedVersion {
			return repository.ErrVersionConflict
		}
		w.Attempts = attempts
		w.Verified = w.Verified || verified
		w.Version++
		payload, err := json.Marshal(w)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.SetArgs(ctx, key, payload, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return repository.ErrVersionConflict
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrVersionConflict):
		return err
	default:
		return fmt.Errorf("redis: update attempts: %w", err)
	}
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Repo) Close() error {
	return r.rdb.Close()
}
