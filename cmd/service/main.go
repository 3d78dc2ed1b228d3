package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/learnhabit/internal/cache"
	"github.com/dropDatabas3/learnhabit/internal/config"
	"github.com/dropDatabas3/learnhabit/internal/email"
	healthctrl "github.com/dropDatabas3/learnhabit/internal/http/controllers/health"
	verifyctrl "github.com/dropDatabas3/learnhabit/internal/http/controllers/verification"
	"github.com/dropDatabas3/learnhabit/internal/http/router"
	"github.com/dropDatabas3/learnhabit/internal/http/server"
	"github.com/dropDatabas3/learnhabit/internal/metrics"
	"github.com/dropDatabas3/learnhabit/internal/observability/logger"
	"github.com/dropDatabas3/learnhabit/internal/rate"
	"github.com/dropDatabas3/learnhabit/internal/security/ticket"
	"github.com/dropDatabas3/learnhabit/internal/store"
	_ "github.com/dropDatabas3/learnhabit/internal/store/adapters/dal"
	"github.com/dropDatabas3/learnhabit/internal/verification"
)

// version se completa con -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to YAML config (optional)")
	envFile := flag.String("env-file", ".env", "Archivo .env (opcional)")
	flag.Parse()

	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "learnhabit-verification",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.L().Error("service stopped with error", logger.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.L()
	for _, w := range cfg.Warnings() {
		log.Warn("config warning", logger.String("detail", w))
	}

	// ─── store ───
	repo, err := store.OpenRepository(ctx, cfg.StoreConfig())
	if err != nil {
		return err
	}
	defer repo.Close()
	log.Info("verification store ready", logger.String("driver", cfg.Storage.Driver))

	// ─── email ───
	providers := email.BuildProviders(cfg.ProvidersConfig())
	transport := email.NewTransport(providers...)
	if len(providers) == 0 {
		log.Warn("no email provider configured; codes will only be logged")
	} else {
		log.Info("email providers configured", logger.Any("providers", transport.Providers()))
	}
	templates, err := email.NewTemplates(cfg.Email.AppName, cfg.Email.TemplatesDir)
	if err != nil {
		return err
	}
	mailer := email.NewPINMailer(transport, templates)

	// ─── cache (redis compartido con el rate limiter) ───
	verifiedCache, err := cache.New(cfg.CacheConfig())
	if err != nil {
		return err
	}
	defer verifiedCache.Close()
	redisClient := cache.RedisClient(verifiedCache)

	// ─── tickets ───
	opts := []verification.Option{verification.WithVerifiedCache(verifiedCache)}
	var tickets *ticket.Issuer
	if cfg.Security.TicketSecret != "" {
		tickets, err = ticket.NewIssuer(cfg.Security.TicketSecret, cfg.Security.TicketIssuer, cfg.Security.TicketTTL)
		if err != nil {
			return err
		}
		opts = append(opts, verification.WithTickets(tickets))
	} else {
		log.Warn("security.ticket_secret not set; verification tickets disabled")
	}

	svc := verification.NewService(repo, mailer, cfg.VerificationConfig(), opts...)

	// ─── rate limit ───
	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		if redisClient != nil {
			limiter = rate.NewRedisLimiter(redisClient, prefixed(cfg.Redis.Prefix, "rl:"), cfg.Rate.Limit, cfg.Rate.Window)
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.Limit, cfg.Rate.Window)
		}
	}

	// ─── http ───
	metricsHandler, err := metrics.Register(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	trusted, err := cfg.TrustedProxies()
	if err != nil {
		return err
	}
	checks := map[string]healthctrl.Pinger{"store": svc}
	if redisClient != nil {
		checks["cache"] = verifiedCache
	}

	var parser verifyctrl.TicketParser
	if tickets != nil {
		parser = tickets
	}
	handler := router.New(router.Deps{
		Verification:   verifyctrl.NewController(svc, parser),
		Health:         healthctrl.NewController(checks),
		Metrics:        metricsHandler,
		RateLimiter:    limiter,
		TrustedProxies: trusted,
	})

	return server.Run(ctx, server.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler)
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
