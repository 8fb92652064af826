package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/handwerkpro/handwerk-api/internal/application/auth"
	appdunning "github.com/handwerkpro/handwerk-api/internal/application/dunning"
	appsync "github.com/handwerkpro/handwerk-api/internal/application/sync"
	"github.com/handwerkpro/handwerk-api/internal/domain/repository"
	"github.com/handwerkpro/handwerk-api/internal/infrastructure/connectivity"
	"github.com/handwerkpro/handwerk-api/internal/infrastructure/email"
	infrapdf "github.com/handwerkpro/handwerk-api/internal/infrastructure/pdf"
	"github.com/handwerkpro/handwerk-api/internal/infrastructure/postgres"
	"github.com/handwerkpro/handwerk-api/internal/infrastructure/sqlite"
	httpRouter "github.com/handwerkpro/handwerk-api/internal/interfaces/http"
	"github.com/handwerkpro/handwerk-api/pkg/config"
	"github.com/handwerkpro/handwerk-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("tenant", cfg.App.Tenant).
		Msg("starting application")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Local store: always available, the instance works without a backend.
	db, err := sqlite.Open(cfg.Local.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open local store")
	}
	defer db.Close()

	kv := sqlite.NewKVStore(db)
	dunningRepo := sqlite.NewDunningRepository(db)
	userRepo := sqlite.NewUserRepository(db)

	session := connectivity.NewSessionTracker(cfg.Sync.SessionMaxIdle)

	// Remote backend: optional. Without credentials the instance runs
	// permanently offline and every mutation stays in the local queue.
	var remote repository.RemoteStore = appsync.NoRemote{}
	var pinger connectivity.Pinger
	var receivables httpRouter.ReceivablesSource
	if cfg.DB.Configured() {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("backend pool configuration")
		}
		defer pool.Close()

		remoteStore := postgres.NewRemoteStore(pool)
		migrateCtx, cancelMigrate := context.WithTimeout(ctx, 10*time.Second)
		if err := remoteStore.Migrate(migrateCtx); err != nil {
			log.Warn().Err(err).Msg("backend unreachable at startup, continuing offline")
		}
		cancelMigrate()

		remote = remoteStore
		pinger = pool
		receivables = remoteStore
	} else {
		log.Warn().Msg("no backend configured, running local-only")
	}

	conn := connectivity.New(pinger, session, cfg.Sync.ProbeTimeout, log)

	syncer := appsync.NewEngine(kv, remote, conn, log, appsync.Options{
		RetryBase: cfg.Sync.RetryBase,
		RetryMax:  cfg.Sync.RetryMax,
	})

	dunningEngine := appdunning.NewEngine(dunningRepo, nil, log)

	var notifier repository.Notifier
	if cfg.SMTP.Configured() {
		notifier = email.NewSMTPNotifier(cfg.SMTP)
	} else {
		notifier = email.NewLogNotifier(log)
	}

	runner := appdunning.NewRunner(dunningEngine, syncer, notifier, log,
		cfg.App.Tenant, cfg.Dunning.SweepInterval, cfg.Dunning.PaymentDays, nil)

	watcher := appsync.NewWatcher(syncer, conn, log, cfg.Sync.ProbeInterval, cfg.Sync.FlushInterval)

	go watcher.Run(ctx)
	go runner.Run(ctx)

	authUC := auth.NewUseCase(userRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	}, session)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "HandwerkPro API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:        authUC,
		Syncer:        syncer,
		DunningEngine: dunningEngine,
		DunningRunner: runner,
		PDFGenerator:  infrapdf.NewMarotoLetterGenerator(),
		Receivables:   receivables,
		Log:           log,
		JWTSecret:     cfg.JWT.Secret,
		Tenant:        cfg.App.Tenant,
		Workshop:      cfg.App.Name,
		PaymentDays:   cfg.Dunning.PaymentDays,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
