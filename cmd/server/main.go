package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"applygate/internal/archive"
	"applygate/internal/directory"
	"applygate/internal/events"
	"applygate/internal/jwttoken"
	"applygate/internal/ledger"
	ledgerhandler "applygate/internal/ledger/handler"
	ledgermetrics "applygate/internal/ledger/metrics"
	ledgerservice "applygate/internal/ledger/service"
	"applygate/internal/lifecycle"
	"applygate/internal/lifecycle/gate"
	lifecyclehandler "applygate/internal/lifecycle/handler"
	lifecyclemetrics "applygate/internal/lifecycle/metrics"
	lifecycleservice "applygate/internal/lifecycle/service"
	"applygate/internal/paywall"
	paywallhandler "applygate/internal/paywall/handler"
	paywallmetrics "applygate/internal/paywall/metrics"
	paywallservice "applygate/internal/paywall/service"
	"applygate/internal/platform/config"
	"applygate/internal/platform/httpserver"
	"applygate/internal/platform/logger"
	platformmetrics "applygate/internal/platform/metrics"
	"applygate/internal/platform/postgres"
	platformredis "applygate/internal/platform/redis"
	"applygate/internal/scheduler"
	schedulermetrics "applygate/internal/scheduler/metrics"
	"applygate/internal/session"
	httptransport "applygate/internal/transport/http"
)

// main wires stores, services, and transport, then runs the server until a
// shutdown signal. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	// Stores: PostgreSQL when DATABASE_URL is set, in-memory otherwise.
	var (
		db                *sql.DB
		accountStore      lifecycle.AccountStore
		reactivationStore lifecycle.ReactivationStore
		grantStore        paywall.Store
		entryStore        ledger.Store
		archiveStore      archive.Store
		recordStore       directory.Store
		ledgerTx          ledgerservice.Tx
		paywallTx         paywallservice.Tx
		lifecycleTx       lifecycleservice.Tx
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(db, cfg.MigrationsDir); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}

		accountStore = lifecycle.NewPostgresAccountStore(db)
		reactivationStore = lifecycle.NewPostgresReactivationStore(db)
		grantStore = paywall.NewPostgres(db)
		entryStore = ledger.NewPostgres(db)
		archiveStore = archive.NewPostgres(db)
		recordStore = directory.NewPostgres(db)
		ledgerTx = newLedgerPostgresTx(db)
		paywallTx = newPaywallPostgresTx(db)
		lifecycleTx = newLifecyclePostgresTx(db)
		log.Info("using postgres stores")
	} else {
		accountStore = lifecycle.NewInMemoryAccountStore()
		reactivationStore = lifecycle.NewInMemoryReactivationStore()
		grantStore = paywall.NewInMemoryStore()
		entryStore = ledger.NewInMemoryStore()
		archiveStore = archive.NewInMemoryStore()
		recordStore = directory.NewInMemoryStore()
		ledgerTx = ledgerservice.NewShardedTx(entryStore)
		paywallTx = paywallservice.NewShardedTx(grantStore, entryStore)
		lifecycleTx = lifecycleservice.NewLockedTx(lifecycleservice.Stores{
			Accounts:      accountStore,
			Archives:      archiveStore,
			Records:       recordStore,
			Entries:       entryStore,
			Reactivations: reactivationStore,
		})
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Sessions: Redis-backed registry when configured.
	var sessionStore session.Store
	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		sessionStore = session.NewRedisStore(rdb.Client, cfg.SessionTTL)
		log.Info("using redis session store")
	} else {
		sessionStore = session.NewInMemoryStore()
		log.Warn("REDIS_URL not set, using in-memory session store")
	}

	// Events: best-effort Kafka stream, no-op when no brokers are configured.
	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kp.Close()
		publisher = kp
		log.Info("publishing events to kafka", "topic", cfg.Kafka.Topic)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)
	jwtValidator := jwttoken.NewAdapter(jwtService)

	httpMetrics := platformmetrics.New()
	lcMetrics := lifecyclemetrics.New()

	ledgerSvc := ledgerservice.NewService(entryStore, ledgerTx, ledgermetrics.New(), log)
	paywallSvc := paywallservice.NewService(grantStore, paywallTx, paywallmetrics.New(), log, publisher)
	lifecycleSvc := lifecycleservice.NewService(
		accountStore, reactivationStore, lifecycleTx,
		sessionStore, publisher, lcMetrics, log, cfg.GracePeriod,
	)

	lifecycleGate := gate.Middleware(accountStore, sessionStore, lcMetrics, log)

	batch := scheduler.New(accountStore, lifecycleSvc, schedulermetrics.New(), log, cfg.SchedulerWorkers)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Paywall:        paywallhandler.New(paywallSvc, ledgerSvc, log, httpMetrics, jwtValidator, sessionStore, lifecycleGate, cfg.DisclosureCost),
		Lifecycle:      lifecyclehandler.New(lifecycleSvc, log, httpMetrics, jwtValidator, sessionStore, cfg.AdminTokenHash),
		Ledger:         ledgerhandler.New(ledgerSvc, log, httpMetrics, jwtValidator, sessionStore, cfg.AdminTokenHash),
		Scheduler:      batch,
		JWTValidator:   jwtValidator,
		Sessions:       sessionStore,
		AdminTokenHash: cfg.AdminTokenHash,
	})

	srv := httpserver.New(cfg.Addr, router)

	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	if cfg.SchedulerInterval > 0 {
		go batch.RunEvery(schedulerCtx, cfg.SchedulerInterval)
	}

	go func() {
		log.Info("starting applygate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
