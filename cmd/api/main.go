// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/pocketree/internal/admin"
	"github.com/carterperez-dev/pocketree/internal/assignment"
	"github.com/carterperez-dev/pocketree/internal/auth"
	"github.com/carterperez-dev/pocketree/internal/badge"
	"github.com/carterperez-dev/pocketree/internal/completion"
	"github.com/carterperez-dev/pocketree/internal/config"
	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/health"
	"github.com/carterperez-dev/pocketree/internal/middleware"
	"github.com/carterperez-dev/pocketree/internal/mission"
	"github.com/carterperez-dev/pocketree/internal/ml"
	"github.com/carterperez-dev/pocketree/internal/realtime"
	"github.com/carterperez-dev/pocketree/internal/scheduler"
	"github.com/carterperez-dev/pocketree/internal/server"
	"github.com/carterperez-dev/pocketree/internal/store"
	"github.com/carterperez-dev/pocketree/internal/task"
	"github.com/carterperez-dev/pocketree/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	generateKeys := flag.Bool(
		"generate-keys",
		false,
		"write a new ES256 key pair to the configured paths and exit",
	)
	flag.Parse()

	if *generateKeys {
		if err := writeKeys(*configPath); err != nil {
			slog.Error("key generation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func writeKeys(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := auth.GenerateKeyPair(
		cfg.JWT.PrivateKeyPath,
		cfg.JWT.PublicKeyPath,
	); err != nil {
		return err
	}

	slog.Info("key pair written",
		"private", cfg.JWT.PrivateKeyPath,
		"public", cfg.JWT.PublicKeyPath,
	)
	return nil
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"mission", cfg.Mission.DefaultName,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	signer, err := auth.NewSigner(cfg.JWT, core.SystemClock)
	if err != nil {
		return err
	}
	logger.Info("token signer initialized", "algorithm", "ES256")

	pg := store.NewPostgres(db.DB, cfg.Database.TxRetries, logger)

	hub := realtime.NewHub(logger)
	broadcaster := realtime.NewBroadcaster(
		hub,
		redis.Client,
		cfg.Realtime.Channel,
		logger,
	)

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()

	if sub, subErr := redis.Subscribe(ctx, cfg.Realtime.Channel); subErr != nil {
		logger.Warn("realtime relay disabled, events stay local",
			"channel", cfg.Realtime.Channel,
			"error", subErr,
		)
		broadcaster = realtime.NewBroadcaster(hub, nil, "", logger)
	} else {
		go broadcaster.Relay(relayCtx, sub)
	}

	catalog := task.NewCatalog(
		pg.Tasks(),
		cfg.Catalog.CacheSize,
		cfg.Catalog.CacheTTL,
	)
	classifier := ml.NewClassifier(cfg.Classifier)
	recommender := ml.NewRecommender(cfg.Recommender)

	contributor := mission.NewContributor(
		//nolint:gosec // G404: slot jitter is cosmetic
		mission.NewSlotAllocator(cfg.Mission.SlotJitter, rand.Float64),
		broadcaster,
		core.SystemClock,
		logger,
	)

	processor := completion.NewProcessor(
		pg,
		catalog,
		classifier,
		badge.NewEvaluator(),
		contributor,
		completion.Config{
			MissionName: cfg.Mission.DefaultName,
			WitherAfter: cfg.Scheduler.WitherAfter,
		},
		logger,
	)

	selector := assignment.NewSelector(
		pg,
		catalog,
		recommender,
		assignment.Options{MaxRecommended: cfg.Recommender.MaxTasks},
		logger,
	)

	userSvc := user.NewService(pg.Users(), user.ServiceConfig{
		MissionName: cfg.Mission.DefaultName,
		WitherAfter: cfg.Scheduler.WitherAfter,
	})
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(
		auth.NewSessionStore(db.DB),
		signer,
		userSvc,
		auth.NewRedisDenylist(redis.Client),
		auth.ServiceConfig{
			RefreshTTL: cfg.JWT.RefreshTokenExpire,
			Logger:     logger,
		},
	)
	authHandler := auth.NewHandler(authSvc)

	missionSvc := mission.NewService(pg.Missions(), cfg.Mission.DefaultName)
	missionHandler := mission.NewHandler(missionSvc)
	badgeHandler := badge.NewHandler(pg.Badges())
	assignmentHandler := assignment.NewHandler(selector, pg.Tasks())
	completionHandler := completion.NewHandler(processor, cfg.Server.MaxUploadBytes)
	realtimeHandler := realtime.NewHandler(
		hub,
		cfg.Realtime,
		cfg.CORS.AllowedOrigins,
		logger,
	)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Missions:   missionSvc,
		Hub:        hub,
	})

	var jobs *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		jobs, err = scheduler.New(pg, authSvc, cfg.Scheduler, core.SystemClock, logger)
		if err != nil {
			return err
		}
		jobs.Start()
		logger.Info("scheduler started",
			"rollover", cfg.Scheduler.RolloverSpec,
			"wither", cfg.Scheduler.WitherSpec,
			"purge", cfg.Scheduler.PurgeSpec,
		)
	}

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewLimiter(redis.Client, middleware.Policy{
			Name: "global",
			Limit: middleware.PerWindow(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			Key: middleware.ByClientIP,
		}, logger).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", signer.JWKS())

	authenticator := middleware.Authenticator(authSvc)
	adminOnly := middleware.RequireAdmin

	completionLimiter := middleware.NewLimiter(redis.Client, middleware.Policy{
		Name: "completion",
		Limit: middleware.PerWindow(
			cfg.RateLimit.CompletionRequests,
			max(cfg.RateLimit.CompletionRequests/4, 1),
			cfg.RateLimit.Window,
		),
		Key: middleware.ByUserRoute,
	}, logger)

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)

		r.Route("/tasks", func(r chi.Router) {
			r.Use(authenticator)
			assignmentHandler.RegisterRoutes(r)
			completionHandler.RegisterRoutes(r, completionLimiter.Handler)
		})

		missionHandler.RegisterRoutes(r)
		badgeHandler.RegisterRoutes(r, authenticator)
		realtimeHandler.RegisterRoutes(r)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if jobs != nil {
		if err := jobs.Stop(shutdownCtx); err != nil {
			logger.Error("scheduler stop error", "error", err)
		}
	}

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	broadcaster.Wait()
	stopRelay()
	hub.Close()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
