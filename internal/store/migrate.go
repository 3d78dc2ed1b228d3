package store

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Formato de archivo: {version}_{name}_up.sql / {version}_{name}_down.sql

// Migrator aplica migraciones SQL embebidas a Postgres.
type Migrator struct {
	migrationsFS fs.FS
	dir          string
}

// NewMigrator crea un nuevo Migrator.
func NewMigrator(migrationsFS fs.FS, dir string) *Migrator {
	return &Migrator{migrationsFS: migrationsFS, dir: dir}
}

// Migration representa una migración individual.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationResult resultado de aplicar migraciones.
type MigrationResult struct {
	Applied  []int
	Skipped  []int
	Duration time.Duration
}

var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)_(up|down)\.sql$`)

// PgxExecutor es el subconjunto de pgxpool.Pool que usa el Migrator.
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ParseMigrations lee y parsea las migraciones del FS, ordenadas por versión.
func (m *Migrator) ParseMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.migrationsFS, m.dir)
	if err != nil {
		return nil, err
	}

	byVersion := map[int]*Migration{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := migrationFilePattern.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}
		version, _ := strconv.Atoi(matches[1])
		content, err := fs.ReadFile(m.migrationsFS, path.Join(m.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: matches[2]}
			byVersion[version] = mig
		}
		if matches[3] == "up" {
			mig.Up = string(content)
		} else {
			mig.Down = string(content)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		out = append(out, *mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Up aplica las migraciones pendientes. steps <= 0 aplica todas.
func (m *Migrator) Up(ctx context.Context, exec PgxExecutor, steps int) (*MigrationResult, error) {
	start := time.Now()
	res := &MigrationResult{}

	if err := m.ensureMigrationsTable(ctx, exec); err != nil {
		return res, fmt.Errorf("creating migrations table: %w", err)
	}
	applied, err := m.appliedVersions(ctx, exec)
	if err != nil {
		return res, fmt.Errorf("getting applied migrations: %w", err)
	}
	migrations, err := m.ParseMigrations()
	if err != nil {
		return res, fmt.Errorf("parsing migrations: %w", err)
	}

	for _, mig := range migrations {
		if applied[mig.Version] {
			res.Skipped = append(res.Skipped, mig.Version)
			continue
		}
		if steps > 0 && len(res.Applied) >= steps {
			break
		}
		if _, err := exec.Exec(ctx, mig.Up); err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("applying migration %d_%s: %w", mig.Version, mig.Name, err)
		}
		if _, err := exec.Exec(ctx, `INSERT INTO _migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name); err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("recording migration %d: %w", mig.Version, err)
		}
		res.Applied = append(res.Applied, mig.Version)
	}

	res.Duration = time.Since(start)
	return res, nil
}

// Down revierte las steps migraciones más recientes (steps <= 0 ⇒ 1).
func (m *Migrator) Down(ctx context.Context, exec PgxExecutor, steps int) (*MigrationResult, error) {
	start := time.Now()
	res := &MigrationResult{}
	if steps <= 0 {
		steps = 1
	}

	if err := m.ensureMigrationsTable(ctx, exec); err != nil {
		return res, err
	}
	applied, err := m.appliedVersions(ctx, exec)
	if err != nil {
		return res, err
	}
	migrations, err := m.ParseMigrations()
	if err != nil {
		return res, err
	}

	for i := len(migrations) - 1; i >= 0 && len(res.Applied) < steps; i-- {
		mig := migrations[i]
		if !applied[mig.Version] {
			continue
		}
		if mig.Down == "" {
			return res, fmt.Errorf("migration %d_%s has no down script", mig.Version, mig.Name)
		}
		if _, err := exec.Exec(ctx, mig.Down); err != nil {
			return res, fmt.Errorf("reverting migration %d_%s: %w", mig.Version, mig.Name, err)
		}
		if _, err := exec.Exec(ctx, `DELETE FROM _migrations WHERE version = $1`, mig.Version); err != nil {
			return res, err
		}
		res.Applied = append(res.Applied, mig.Version)
	}

	res.Duration = time.Since(start)
	return res, nil
}

func (m *Migrator) ensureMigrationsTable(ctx context.Context, exec PgxExecutor) error {
	_, err := exec.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	return err
}

func (m *Migrator) appliedVersions(ctx context.Context, exec PgxExecutor) (map[int]bool, error) {
	rows, err := exec.Query(ctx, `SELECT version FROM _migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
