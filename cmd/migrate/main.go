package main

import (
	"context"
	"flag"
	"log"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/dropDatabas3/learnhabit/internal/config"
	"github.com/dropDatabas3/learnhabit/internal/store"
	migrations "github.com/dropDatabas3/learnhabit/migrations/postgres"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "Path to YAML config")
		dsn        = flag.String("dsn", "", "Postgres DSN (pisa storage.dsn)")
	)
	flag.Parse()
	_ = godotenv.Load(".env")

	// Positional args: [action] [steps]
	action := "up"
	steps := 0
	args := flag.Args()
	if len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			steps = n
		}
	}

	target := *dsn
	if target == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config load: %v", err)
		}
		target = cfg.Storage.DSN
	}
	if target == "" {
		log.Fatal("no DSN: use -dsn or storage.dsn / STORAGE_DSN")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, target)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	m := store.NewMigrator(migrations.FS, migrations.Dir)
	var res *store.MigrationResult
	switch action {
	case "up":
		res, err = m.Up(ctx, pool, steps)
	case "down":
		if steps == 0 {
			steps = 1
		}
		res, err = m.Down(ctx, pool, steps)
	default:
		log.Fatalf("unknown action %q (up|down)", action)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", action, err)
	}
	log.Printf("migrate %s: applied=%v skipped=%v in %s", action, res.Applied, res.Skipped, res.Duration)
}
