package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/learnhabit/internal/domain/repository"
)

// baseRetention es lo que sobrevive un registro más allá de su TTL de PIN o
// del cooldown de reenvío, lo que sea mayor.
const baseRetention = 24 * time.Hour

// Config describe el almacenamiento seleccionado por storage.driver.
type Config struct {
	Driver   string
	DSN      string
	Postgres struct {
		MaxConns, MinConns int
	}
	Redis struct {
		Addr, Password, Prefix string
		DB                     int
	}

	// PINTTL y ResendCooldown definen la retención mínima de un registro.
	PINTTL         time.Duration
	ResendCooldown time.Duration
}

// NormalizeDriver acepta los alias habituales de cada driver.
func NormalizeDriver(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "postgres", "pg", "postgresql":
		return "postgres"
	case "redis":
		return "redis"
	case "", "memory", "mem", "inmemory":
		return "memory"
	default:
		return strings.ToLower(strings.TrimSpace(d))
	}
}

// Retention calcula max(PIN TTL, cooldown) + 24h.
func (c Config) Retention() time.Duration {
	longest := c.PINTTL
	if c.ResendCooldown > longest {
		longest = c.ResendCooldown
	}
	return longest + baseRetention
}

// OpenRepository traduce Config a AdapterConfig y abre el adapter registrado.
// Los adapters se registran importando internal/store/adapters/dal.
func OpenRepository(ctx context.Context, cfg Config) (repository.VerificationRepository, error) {
	ac := AdapterConfig{
		Name:          NormalizeDriver(cfg.Driver),
		DSN:           cfg.DSN,
		MaxConns:      cfg.Postgres.MaxConns,
		MinConns:      cfg.Postgres.MinConns,
		RedisAddr:     cfg.Redis.Addr,
		RedisDB:       cfg.Redis.DB,
		RedisPassword: cfg.Redis.Password,
		Prefix:        cfg.Redis.Prefix,
		Retention:     cfg.Retention(),
	}
	if ac.Name == "postgres" && ac.DSN == "" {
		return nil, fmt.Errorf("store: postgres driver requires a DSN")
	}
	repo, err := Open(ctx, ac)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", ac.Name, err)
	}
	return repo, nil
}
