package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listing_leads_backend/internal/adapters/storage"
	"listing_leads_backend/internal/email"
	"listing_leads_backend/internal/events"
	"listing_leads_backend/internal/followup"
	apphttp "listing_leads_backend/internal/http"
	"listing_leads_backend/internal/http/router"
	"listing_leads_backend/internal/ingestion"
	"listing_leads_backend/internal/leads"
	"listing_leads_backend/internal/listings"
	"listing_leads_backend/internal/notification"
	"listing_leads_backend/internal/scheduler"
	"listing_leads_backend/internal/sms"
	"listing_leads_backend/internal/whatsapp"
	"listing_leads_backend/platform/besteffort"
	"listing_leads_backend/platform/config"
	"listing_leads_backend/platform/db"
	"listing_leads_backend/platform/logger"
	"listing_leads_backend/platform/redisconn"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	reporter, flushSentry, err := besteffort.InitSentry(cfg)
	if err != nil {
		log.Warn("sentry disabled", "error", err)
	}
	defer flushSentry()

	// Best-effort side effects (notifications, archive) never block a request.
	sideEffectTimeout := cfg.GetSideEffectTimeout()
	if budget := notification.DispatchBudget(cfg.GetChannelTimeout()); sideEffectTimeout < budget {
		log.Warn("side effect timeout raised to fit notification dispatch", "configured", sideEffectTimeout, "timeout", budget)
		sideEffectTimeout = budget
	}
	runner := besteffort.NewRunner(log, cfg.GetSideEffectConcurrency(), sideEffectTimeout, reporter)
	eventBus := events.NewInMemoryBus(runner)

	rdb := initRedis(cfg, log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	jobs, closeJobs := initJobClient(cfg, log)
	if closeJobs != nil {
		defer closeJobs()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	listingRepo := listings.New(pool)
	leadsModule := leads.NewModule(pool, listingRepo, eventBus, log)

	ingestionSvc := ingestion.NewService(ingestion.ServiceDeps{
		Leads:    leadsModule.Repository(),
		Pending:  leadsModule.Repository(),
		Listings: listingRepo,
		Resolver: listings.NewResolver(listingRepo),
		Scorer:   leadsModule.ScoringService().Engine(),
		Bus:      eventBus,
		Archive:  initArchive(ctx, cfg, log),
		Runner:   runner,
		Log:      log,
	})
	ingestionModule := ingestion.NewModule(ingestionSvc, cfg.GetWebhookAPIKey())

	notificationDeps := notification.ModuleDeps{
		Pool:      pool,
		Leads:     leadsModule.Repository(),
		Listings:  listingRepo,
		Owners:    listingRepo,
		SMS:       sms.NewClient(cfg, log),
		Messaging: whatsapp.NewClient(cfg, log),
		Email:     email.NewSMTPSender(cfg, log),
		Config:    cfg,
		Log:       log,
	}
	if rdb != nil {
		notificationDeps.Redis = rdb
	}
	notificationModule := notification.New(notificationDeps)
	notificationModule.RegisterHandlers(eventBus)
	defer notificationModule.SSE().Close()

	modules := []apphttp.Module{
		ingestionModule,
		leadsModule,
		notificationModule,
	}
	if jobs != nil {
		modules = append(modules, followup.NewModule(jobs))
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules:  modules,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		notificationModule.SSE().Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRedis(cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; notification rate limits disabled")
		return nil
	}
	rdb, err := redisconn.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		return nil
	}
	return rdb
}

func initJobClient(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.JobEnqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; manual job runs disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func initArchive(ctx context.Context, cfg config.ArchiveConfig, log *logger.Logger) ingestion.RawArchiver {
	if !cfg.IsArchiveEnabled() {
		return nil
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize inbound email archive", "error", err)
		return nil
	}
	if err := withRetry(ctx, log, "ensure archive bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx)
	}); err != nil {
		log.Error("failed to ensure archive bucket exists", "error", err, "bucket", storageSvc.Bucket())
		return nil
	}
	log.Info("inbound email archive initialized", "bucket", storageSvc.Bucket())
	return storageSvc
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
