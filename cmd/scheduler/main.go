package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listing_leads_backend/internal/email"
	"listing_leads_backend/internal/events"
	"listing_leads_backend/internal/followup"
	"listing_leads_backend/internal/ingestion"
	"listing_leads_backend/internal/ingestion/mailbox"
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
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	reporter, flushSentry, err := besteffort.InitSentry(cfg)
	if err != nil {
		log.Warn("sentry disabled", "error", err)
	}
	defer flushSentry()

	sideEffectTimeout := cfg.GetSideEffectTimeout()
	if budget := notification.DispatchBudget(cfg.GetChannelTimeout()); sideEffectTimeout < budget {
		log.Warn("side effect timeout raised to fit notification dispatch", "configured", sideEffectTimeout, "timeout", budget)
		sideEffectTimeout = budget
	}
	runner := besteffort.NewRunner(log, cfg.GetSideEffectConcurrency(), sideEffectTimeout, reporter)
	eventBus := events.NewInMemoryBus(runner)

	rdb, err := redisconn.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("scheduler requires redis: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	listingRepo := listings.New(pool)
	leadsModule := leads.NewModule(pool, listingRepo, eventBus, log)

	emailSender := email.NewSMTPSender(cfg, log)
	messaging := whatsapp.NewClient(cfg, log)

	// Leads captured by the mailbox poller are announced from this process.
	notificationModule := notification.New(notification.ModuleDeps{
		Pool:      pool,
		Redis:     rdb,
		Leads:     leadsModule.Repository(),
		Listings:  listingRepo,
		Owners:    listingRepo,
		SMS:       sms.NewClient(cfg, log),
		Messaging: messaging,
		Email:     emailSender,
		Config:    cfg,
		Log:       log,
	})
	notificationModule.RegisterHandlers(eventBus)

	processor := followup.NewProcessor(followup.Deps{
		Leads:         leadsModule.Repository(),
		Rescorer:      leadsModule.ScoringService(),
		Listings:      listingRepo,
		Owners:        listingRepo,
		Email:         emailSender,
		Messaging:     messaging,
		Notifier:      notificationModule.InAppService(),
		Notifications: notificationModule.InAppService(),
		Pending:       leadsModule.Repository(),
	}, followup.Options{
		DefaultInterval:  cfg.GetDefaultFollowUpInterval(),
		PendingRetention: cfg.GetPendingRetention(),
		AppBaseURL:       cfg.GetAppBaseURL(),
	}, log)

	worker, err := scheduler.NewWorker(cfg, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	followUps := followup.NewScheduler(processor, worker, periodic, followup.Cadence{
		Rescore:  cfg.GetRescoreCron(),
		FollowUp: cfg.GetFollowUpCron(),
		Cleanup:  cfg.GetCleanupCron(),
	}, log)
	if err := followUps.Start(ctx); err != nil {
		log.Error("failed to start follow-up scheduler", "error", err)
		panic("failed to start follow-up scheduler: " + err.Error())
	}
	defer followUps.Stop()

	if cfg.IsMailboxEnabled() {
		ingestionSvc := ingestion.NewService(ingestion.ServiceDeps{
			Leads:    leadsModule.Repository(),
			Pending:  leadsModule.Repository(),
			Listings: listingRepo,
			Resolver: listings.NewResolver(listingRepo),
			Scorer:   leadsModule.ScoringService().Engine(),
			Bus:      eventBus,
			Runner:   runner,
			Log:      log,
		})
		poller := mailbox.NewPoller(mailbox.NewIMAPSource(cfg), mailbox.NewCursorStore(pool), ingestionSvc, log, cfg.GetIMAPPollInterval())
		go poller.Run(ctx)
		log.Info("mailbox poller started", "host", cfg.GetIMAPHost(), "folder", cfg.GetIMAPFolder())
	}

	<-ctx.Done()
	log.Info("shutdown signal received, stopping scheduler")
	followUps.Stop()
	eventBus.Wait()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
