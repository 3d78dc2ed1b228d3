// Package store provee el registry de adaptadores de almacenamiento para los
// registros de verificación. Cada adapter se registra en init().
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/learnhabit/internal/domain/repository"
)

// Adapter representa un backend capaz de abrir un VerificationRepository.
type Adapter interface {
	// Name retorna el nombre del adapter (ej: "postgres", "redis", "memory").
	Name() string

	// Open establece conexión con el almacenamiento.
	Open(ctx context.Context, cfg AdapterConfig) (repository.VerificationRepository, error)
}

// AdapterConfig configuración para conectar a un almacenamiento.
type AdapterConfig struct {
	// Name del adapter: "postgres", "redis", "memory"
	Name string

	// DSN connection string (postgres)
	DSN string

	// Pool settings (postgres)
	MaxConns int
	MinConns int

	// Redis
	RedisAddr     string
	RedisDB       int
	RedisPassword string
	Prefix        string

	// Retention cuánto sobrevive un registro sin ser reemplazado (redis, memory).
	// Postgres no expira filas: el siguiente envío las pisa.
	Retention time.Duration
}

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter en el registry global.
// Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("adapter: %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres de todos los adapters registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open abre un repositorio usando el adapter especificado en la config.
func Open(ctx context.Context, cfg AdapterConfig) (repository.VerificationRepository, error) {
	if cfg.Name == "" {
		cfg.Name = "memory"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("adapter: %q not registered (available: %v)", cfg.Name, ListAdapters())
	}
	return a.Open(ctx, cfg)
}
