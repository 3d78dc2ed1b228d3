// Package memory implementa el adapter en memoria (go-cache). Pensado para
// desarrollo y tests: los registros viven solo en el proceso.
package memory

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/learnhabit/internal/domain/repository"
	"github.com/dropDatabas3/learnhabit/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Open(_ context.Context, cfg store.AdapterConfig) (repository.VerificationRepository, error) {
	return New(cfg.Retention), nil
}

// Repo guarda copias de los registros; nunca expone punteros internos.
type Repo struct {
	mu sync.Mutex
	c  *gocache.Cache
}

// New crea un repositorio en memoria. retention <= 0 significa sin expiración.
func New(retention time.Duration) *Repo {
	exp := gocache.NoExpiration
	cleanup := time.Duration(0)
	if retention > 0 {
		exp = retention
		cleanup = retention / 2
	}
	return &Repo{c: gocache.New(exp, cleanup)}
}

func (r *Repo) Put(_ context.Context, rec *repository.VerificationRecord) error {
	if rec == nil || rec.Email == "" {
		return repository.ErrInvalidInput
	}
	email := repository.NormalizeEmail(rec.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	version := int64(1)
	if v, ok := r.c.Get(email); ok {
		version = v.(repository.VerificationRecord).Version + 1
	}
	rec.Email = email
	rec.Version = version
	r.c.SetDefault(email, *rec)
	return nil
}

func (r *Repo) Get(_ context.Context, email string) (*repository.VerificationRecord, error) {
	v, ok := r.c.Get(repository.NormalizeEmail(email))
	if !ok {
		return nil, repository.ErrNotFound
	}
	rec := v.(repository.VerificationRecord)
	return &rec, nil
}

func (r *Repo) UpdateAttempts(_ context.Context, email string, attempts int, verified bool, expectedVersion int64) error {
	email = repository.NormalizeEmail(email)

	r.mu.Lock()
	defer r.mu.Unlock()

	v, exp, ok := r.c.GetWithExpiration(email)
	if !ok {
		return repository.ErrNotFound
	}
	rec := v.(repository.VerificationRecord)
	if rec.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	rec.Attempts = attempts
	rec.Verified = rec.Verified || verified
	rec.Version++

	// Conservar la expiración original del item
	d := gocache.NoExpiration
	if !exp.IsZero() {
		d = time.Until(exp)
		if d <= 0 {
			return repository.ErrNotFound
		}
	}
	r.c.Set(email, rec, d)
	return nil
}

func (r *Repo) Ping(context.Context) error { return nil }

func (r *Repo) Close() error {
	r.c.Flush()
	return nil
}
