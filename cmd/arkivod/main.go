package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/arkivo/arkivo/internal/access"
	"github.com/arkivo/arkivo/internal/api"
	"github.com/arkivo/arkivo/internal/app"
	"github.com/arkivo/arkivo/internal/audit"
	"github.com/arkivo/arkivo/internal/entity"
	"github.com/arkivo/arkivo/internal/identity"
	"github.com/arkivo/arkivo/internal/mutate"
	"github.com/arkivo/arkivo/internal/observability"
	"github.com/arkivo/arkivo/internal/platform/cache"
	"github.com/arkivo/arkivo/internal/platform/db"
	"github.com/arkivo/arkivo/internal/query"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	initSchema := flag.Bool("init-schema", false, "create database tables and exit")
	bootstrapUser := flag.String("bootstrap", "", "seed an initial user with a root role and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	var (
		store       entity.Store
		auditClient *asynq.Client
	)
	switch cfg.StoreBackend {
	case "memory":
		mem := entity.NewMemStore()
		// The in-memory backend starts empty and every call needs a caller
		// identity, so seed an admin up front.
		if err := seed(ctx, mem, "admin"); err != nil {
			logger.Error("seed memory store", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("memory backend seeded", slog.String("user", "admin"))
		store = mem
	default:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()

		var names *entity.NameCache
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, name cache disabled", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			names = entity.NewNameCache(redisClient, cfg.NameCacheTTL)
			auditClient = asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			defer func() {
				if err := auditClient.Close(); err != nil {
					logger.Warn("asynq close", slog.Any("error", err))
				}
			}()
		}

		repo := entity.NewRepository(pool, names)
		if *initSchema {
			if err := repo.InitSchema(ctx); err != nil {
				logger.Error("init schema", slog.Any("error", err))
				os.Exit(1)
			}
			logger.Info("schema initialized")
			return
		}
		store = repo
	}

	if *bootstrapUser != "" {
		if err := seed(ctx, store, *bootstrapUser); err != nil {
			logger.Error("bootstrap", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("bootstrap complete", slog.String("user", *bootstrapUser))
		return
	}

	metrics := observability.NewMetrics()
	eval := access.NewEvaluator(store)
	engine := query.NewEngine(store, eval, metrics)
	recorder := audit.NewRecorder(auditClient, logger)
	mutations := mutate.NewService(store, eval, recorder, logger)
	resolver := identity.NewResolver(store)
	handler := api.NewHandler(logger, engine, mutations)

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		Resolver:   resolver,
		APIHandler: handler,
		Metrics:    metrics,
	})

	tlsConfig, err := app.NewTLSConfig(cfg)
	if err != nil {
		logger.Error("tls config", slog.Any("error", err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		TLSConfig:    tlsConfig,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("rpc listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("metrics listening", slog.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

// seed creates the first user, a root role, the membership link, and full
// capabilities for the role on both entities. Without it a fresh store is
// unreachable: every call needs a resolvable caller.
func seed(ctx context.Context, store entity.Store, userName string) error {
	user, err := store.CreateEntity(ctx, entity.KindUser, userName)
	if err != nil {
		return err
	}
	role, err := store.CreateEntity(ctx, entity.KindRole, "root")
	if err != nil {
		return err
	}
	if _, err := store.AddLink(ctx, user.UUID, role.UUID); err != nil {
		return err
	}
	for _, capability := range []string{access.CapabilityRead, access.CapabilityWrite, access.CapabilityLink, access.CapabilityGrant} {
		if _, err := store.AddPermission(ctx, user.UUID, role.UUID, capability); err != nil {
			return err
		}
		if _, err := store.AddPermission(ctx, role.UUID, role.UUID, capability); err != nil {
			return err
		}
	}
	return nil
}
