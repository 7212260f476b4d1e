package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realty_portal_backend/internal/events"
	apphttp "realty_portal_backend/internal/http"
	"realty_portal_backend/internal/http/router"
	"realty_portal_backend/internal/intelligence"
	"realty_portal_backend/internal/intelligence/aiassist"
	"realty_portal_backend/platform/ai/gemini"
	"realty_portal_backend/platform/cache"
	"realty_portal_backend/platform/config"
	"realty_portal_backend/platform/db"
	"realty_portal_backend/platform/logger"
	"realty_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	store := initCacheStore(cfg, log)
	completer := initCompleter(ctx, cfg, log)

	intelligenceModule := intelligence.NewModule(pool, store, completer, cfg, log, val)

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			intelligenceModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initCacheStore picks the distribution cache backend. Redis keeps the
// cache shared across processes; memory is the single-process default.
func initCacheStore(cfg config.CacheConfig, log *logger.Logger) cache.Store {
	if cfg.GetCacheBackend() == "redis" {
		store, err := cache.NewRedisStore(cfg.GetRedisURL(), "intel")
		if err != nil {
			log.Error("failed to initialize redis cache, falling back to memory", "error", err)
			return cache.NewMemoryStore()
		}
		log.Info("redis cache store initialized")
		return store
	}
	return cache.NewMemoryStore()
}

// initCompleter builds the AI completion backend, or nil when AI is
// disabled. A nil completer turns every enhancement into its deterministic
// fallback.
func initCompleter(ctx context.Context, cfg config.AIConfig, log *logger.Logger) aiassist.Completer {
	if !cfg.IsAIEnabled() {
		log.Info("ai enhancement disabled")
		return nil
	}

	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:       cfg.GetGeminiAPIKey(),
		DefaultModel: cfg.GetAIDefaultModel(),
	})
	if err != nil {
		log.Error("failed to initialize gemini client; running without ai", "error", err)
		return nil
	}
	log.Info("gemini completion client initialized", "model", cfg.GetAIDefaultModel())
	return completerAdapter{client: client}
}

// completerAdapter bridges the gemini client to the enhancement contract.
type completerAdapter struct {
	client *gemini.Client
}

func (a completerAdapter) Complete(ctx context.Context, prompt string, opts aiassist.CompletionOptions) (string, error) {
	return a.client.Complete(ctx, prompt, gemini.CompletionOptions{
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable init step failed", "step", name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay * time.Duration(attempt)):
		}
	}
	return lastErr
}
