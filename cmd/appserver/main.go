// Command appserver runs the marketplace transactional core: the Stripe
// webhook ingest HTTP surface, the outbox dispatcher, the supply-control
// change-log drain loop, and the periodic cron jobs that sweep capacity
// and corrections. Grounded on the teacher's cmd/appserver/main.go wiring
// shape (flags, postgres-or-in-memory store selection, signal handling),
// adapted in place of the teacher's app.New/application.Attach/Start/Stop
// abstraction, which this module has no equivalent of: every service is
// constructed and started inline here instead.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/correction"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/escrow"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/identity"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/metrics"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/notification"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/payout"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/memory"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/postgres"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/supply"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/webhook"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/webhook/effects"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/analytics"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/cache"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/config"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/database"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/migrations"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/notifychannel"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/paymentprocessor"
)

// stores is the minimal interface main needs from whichever concrete
// storage.Store implementation is selected: both postgres.Store and
// memory.Store satisfy every storage.*Store interface plus TxRunner on
// one concrete type, so no field-by-field assembly is needed.
type stores interface {
	storage.TxRunner
	storage.UserStore
	storage.TaskStore
	storage.EscrowStore
	storage.OutboxStore
	storage.StripeEventStore
	storage.LedgerStore
	storage.SupplyStore
	storage.CorrectionStore
	storage.NotificationStore
}

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to config or :8080)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config/env; in-memory storage when empty)")
	runMigrations := flag.Bool("migrate", true, "run embedded database migrations on startup (ignored for in-memory)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logging.New("appserver", cfg.LogLevel, cfg.LogFormat)

	dsnVal := strings.TrimSpace(*dsn)
	if dsnVal == "" {
		dsnVal = cfg.DatabaseURL
	}

	var (
		db *sql.DB
		st stores
	)
	if dsnVal != "" {
		rootCtx := context.Background()
		db, err = database.Open(rootCtx, dsnVal)
		if err != nil {
			log.Fatalf("connect to postgres: %v", err)
		}
		if cfg.DBMaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		}
		if cfg.DBMaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.DBMaxIdleConns)
		}
		if cfg.DBConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
		}
		if *runMigrations {
			if err := migrations.Apply(db); err != nil {
				log.Fatalf("apply migrations: %v", err)
			}
		}
		st = postgres.New(db)
		defer db.Close()
	} else {
		logger.Warn(context.Background(), "no DATABASE_URL/--dsn set, running against in-memory storage", nil)
		st = memory.New()
	}

	var notifCache cache.Cache
	if cfg.RedisAddr != "" {
		notifCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	} else {
		notifCache = cache.NewInMemory()
	}

	writer := outbox.NewWriter(st)

	escrowSvc := escrow.New(st, st, st, st, writer, logger)
	supplySvc := supply.New(st, st, st, logger)
	correctionSvc := correction.New(st, st, analytics.Noop{}, logger)
	notificationSvc := notification.New(st, st, notifCache, logger)
	emailDispatcher := notification.NewEmailDispatcher(st, st, notifychannel.Noop{}, notification.DefaultEmailDispatcherConfig(), logger)
	identitySvc := identity.New(st, st, logger)

	processor := paymentprocessor.Noop{}
	disputeWorker := payout.NewDisputeActionWorker(escrowSvc, logger)
	reconciler := payout.NewReconciler(st, st, st, processor, logger)
	effectsWorker := effects.New(st, st, escrowSvc, identitySvc, logger)

	queueConfigs := outbox.DefaultQueueConfigs()
	router := outbox.NewRouter(queueConfigs)
	router.RegisterHandler(domoutbox.EventStripeEventReceived, effectsWorker.Handle)
	router.RegisterHandler(domoutbox.EventEscrowReleaseRequested, disputeWorker.Handle)
	router.RegisterHandler(domoutbox.EventEscrowRefundRequested, disputeWorker.Handle)
	router.RegisterHandler(domoutbox.EventEscrowPartialRefundRequested, disputeWorker.Handle)
	router.RegisterHandler(domoutbox.EventEscrowReleased, reconciler.Handle)
	router.RegisterHandler(domoutbox.EventEscrowRefunded, reconciler.Handle)
	router.RegisterHandler(domoutbox.EventEscrowPartialRefunded, reconciler.Handle)
	router.RegisterHandler(domoutbox.EventDisputeCreated, notificationSvc.HandleDisputeCreated)

	dispatcherCfg := outbox.DefaultDispatcherConfig()
	if cfg.OutboxPollInterval > 0 {
		dispatcherCfg.PollInterval = cfg.OutboxPollInterval
	}
	if cfg.OutboxBatchSize > 0 {
		dispatcherCfg.BatchSize = cfg.OutboxBatchSize
	}
	dispatcher := outbox.NewDispatcher(st, st, router, dispatcherCfg, queueConfigs, logger)

	ingestor := webhook.NewIngestor(st, st, writer, cfg.StripeWebhookSecret, logger)

	r := chi.NewRouter()
	ingestor.Mount(r)
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	listenAddr := strings.TrimSpace(*addr)
	if listenAddr == "" {
		listenAddr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}
	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: metrics.InstrumentHandler(r),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go dispatcher.Run(ctx)
	go supplySvc.Run(ctx)
	go emailDispatcher.Run(ctx)

	c := cron.New()
	if _, err := c.AddFunc("@every 5m", func() {
		if err := supplySvc.RecomputeAll(ctx, time.Now().UTC()); err != nil {
			logger.WithError(err).Error("cron: supply recompute failed")
		}
	}); err != nil {
		log.Fatalf("schedule supply recompute: %v", err)
	}
	if _, err := c.AddFunc("@every 15m", func() {
		now := time.Now().UTC()
		if _, err := correctionSvc.ExpireDue(ctx, now); err != nil {
			logger.WithError(err).Error("cron: correction expire failed")
		}
		if _, err := correctionSvc.Analyze(ctx, now); err != nil {
			logger.WithError(err).Error("cron: correction analyze failed")
		}
	}); err != nil {
		log.Fatalf("schedule correction sweep: %v", err)
	}
	c.Start()
	defer c.Stop()

	go func() {
		logger.WithFields(map[string]interface{}{"addr": listenAddr}).Info("appserver: listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http server shutdown")
	}
}
