package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/forge-storefront/internal/api"
	"github.com/Priya8975/forge-storefront/internal/auth"
	"github.com/Priya8975/forge-storefront/internal/cart"
	"github.com/Priya8975/forge-storefront/internal/catalog"
	"github.com/Priya8975/forge-storefront/internal/config"
	"github.com/Priya8975/forge-storefront/internal/ingest"
	"github.com/Priya8975/forge-storefront/internal/logger"
	"github.com/Priya8975/forge-storefront/internal/ratelimit"
	"github.com/Priya8975/forge-storefront/internal/store"
	ws "github.com/Priya8975/forge-storefront/internal/websocket"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("failed to load config", zap.Error(err))
	}

	log, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("failed to build logger", zap.Error(err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			log.Warn("failed to close store", zap.Error(err))
		}
	}()

	health := map[string]api.Pinger{"store": db}

	// Redis is optional: without it carts live in process memory and both
	// the webhook rate limit and the failed-attempt lockout are off.
	var (
		persister cart.Persister = cart.NewMemoryPersisterTTL(cfg.CartTTL)
		limiter   api.Limiter
		lockout   api.Guard
	)
	if cfg.RedisURL != "" {
		rs, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rs.Close()
		log.Info("connected to redis")

		persister = cart.NewRedisPersister(rs.Client(), cfg.CartTTL)
		limiter = ratelimit.New(rs.Client(), log.Named("ratelimit"))
		if cfg.LockoutThreshold > 0 {
			lockout = ratelimit.NewLockout(rs.Client(), log.Named("lockout"), cfg.LockoutThreshold, cfg.LockoutCooldown)
		}
		health["redis"] = rs
	} else if cfg.WebhookRateLimit > 0 {
		log.Warn("WEBHOOK_RATE_LIMIT ignored because REDIS_URL is not set")
	}

	catalogSvc := catalog.NewService(db, log.Named("catalog"))
	if cfg.SeedCatalog {
		if err := catalogSvc.Seed(ctx); err != nil {
			log.Fatal("failed to seed catalog", zap.Error(err))
		}
	}

	hub := ws.NewHub(log.Named("feed"))
	go hub.Run(ctx)

	carts := cart.NewRegistry(persister, log.Named("cart"), cart.WithIdleTTL(cfg.CartTTL))
	go carts.Run(ctx, time.Minute)

	ingestSvc := ingest.NewService(db, cfg.WebhookSecret, log.Named("webhook"), ingest.WithNotifier(hub))
	authSvc := auth.NewService(db, auth.NewTokenService(cfg.JWTSecret, auth.DefaultTokenTTL), log.Named("auth"))

	router := api.NewRouter(api.Deps{
		Logger:           log,
		Ingest:           ingestSvc,
		Catalog:          catalogSvc,
		Carts:            carts,
		Auth:             authSvc,
		Events:           db,
		Hub:              hub,
		Limiter:          limiter,
		Lockout:          lockout,
		WebhookRateLimit: cfg.WebhookRateLimit,
		Health:           health,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.RunMigrations(ctx, store.Migrations()); err != nil {
			pg.Close(ctx)
			return nil, err
		}
		log.Info("connected to postgres, migrations applied")
		return pg, nil

	default:
		mg, err := store.NewMongo(ctx, cfg.MongoURL, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		if err := mg.EnsureIndexes(ctx); err != nil {
			mg.Close(ctx)
			return nil, err
		}
		log.Info("connected to mongo", zap.String("database", cfg.MongoDBName))
		return mg, nil
	}
}
