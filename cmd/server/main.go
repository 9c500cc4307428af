// Command server runs the SHA membership and claims API. With SHA_POSTGRES_URL
// set it runs on Postgres (and can drain the audit outbox to Kafka); without
// it everything runs on in-memory stores, which is the local development mode.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"shacore/internal/audit"
	"shacore/internal/audit/publisher"
	auditMemory "shacore/internal/audit/store/memory"
	auditPostgres "shacore/internal/audit/store/postgres"
	"shacore/internal/audit/worker"
	claimsHandler "shacore/internal/claims/handler"
	claimsService "shacore/internal/claims/service"
	claimsMemory "shacore/internal/claims/store/memory"
	claimsPostgres "shacore/internal/claims/store/postgres"
	ledgerHandler "shacore/internal/ledger/handler"
	ledgerService "shacore/internal/ledger/service"
	ledgerMemory "shacore/internal/ledger/store/memory"
	ledgerPostgres "shacore/internal/ledger/store/postgres"
	"shacore/internal/notify"
	notifyMemory "shacore/internal/notify/store/memory"
	notifyPostgres "shacore/internal/notify/store/postgres"
	"shacore/internal/platform/config"
	"shacore/internal/platform/httpserver"
	"shacore/internal/platform/logger"
	"shacore/internal/platform/metrics"
	platformPostgres "shacore/internal/platform/postgres"
	platformRedis "shacore/internal/platform/redis"
	registryHandler "shacore/internal/registry/handler"
	registryService "shacore/internal/registry/service"
	registryMemory "shacore/internal/registry/store/memory"
	registryPostgres "shacore/internal/registry/store/postgres"
	"shacore/internal/stats"
	statsPostgres "shacore/internal/stats/store/postgres"
	httpapi "shacore/internal/transport/http"
	visitHandler "shacore/internal/visit/handler"
	visitService "shacore/internal/visit/service"
	visitMemory "shacore/internal/visit/store/memory"
	visitPostgres "shacore/internal/visit/store/postgres"
	"shacore/internal/visit/throttle"
	"shacore/pkg/platform/tx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	var (
		memberStore   registryService.MemberStore
		employerStore registryService.EmployerStore
		hospitalStore registryService.HospitalStore
		ledgerStore   ledgerService.Store
		visitStore    visitService.VisitStore
		otpStore      visitService.OTPStore
		rxStore       visitService.PrescriptionStore
		pharmacyStore visitService.PharmacyStore
		claimsStore   claimsService.Store
		auditStore    audit.Store
		notifyStore   notify.Store
		statsService  *stats.Service
		outboxStore   *auditPostgres.Store
	)
	var runner tx.Runner = tx.NopRunner{}

	if cfg.PostgresURL != "" {
		db, err := platformPostgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := platformPostgres.Migrate(ctx, db); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}

		memberStore = registryPostgres.NewMemberStore(db)
		employerStore = registryPostgres.NewEmployerStore(db)
		hospitalStore = registryPostgres.NewHospitalStore(db)
		ledgerStore = ledgerPostgres.New(db)
		visitStore = visitPostgres.NewVisitStore(db)
		otpStore = visitPostgres.NewOTPStore(db)
		rxStore = visitPostgres.NewPrescriptionStore(db)
		pharmacyStore = visitPostgres.NewPharmacyStore(db)
		claimsStore = claimsPostgres.New(db)
		outboxStore = auditPostgres.New(db)
		auditStore = outboxStore
		notifyStore = notifyPostgres.New(db)
		runner = tx.NewSQLRunner(db)
		statsService = stats.New(statsPostgres.New(db))
		log.Info("running on postgres")
	} else {
		memberStore = registryMemory.NewMemberStore()
		employerStore = registryMemory.NewEmployerStore()
		hospitalStore = registryMemory.NewHospitalStore()
		ledgerStore = ledgerMemory.New()
		visitStore = visitMemory.NewVisitStore()
		otpStore = visitMemory.NewOTPStore()
		rxStore = visitMemory.NewPrescriptionStore()
		pharmacyStore = visitMemory.NewPharmacyStore()
		claimsStore = claimsMemory.New()
		auditStore = auditMemory.New()
		notifyStore = notifyMemory.New()
		log.Warn("no postgres URL configured; running on in-memory stores")
	}

	recorder := audit.NewRecorder(auditStore, log, m)
	notifyService := notify.NewService(notifyStore, notify.LogDeliverer{Logger: log}, log, m)

	redisClient, err := platformRedis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	var otpThrottle *throttle.Throttle
	if redisClient != nil {
		defer redisClient.Close()
		otpThrottle = throttle.New(redisClient.Client)
	}

	registrySvc := registryService.New(memberStore, employerStore, hospitalStore, recorder, log,
		registryService.WithNotifier(notifyService),
		registryService.WithMetrics(m),
		registryService.WithTxRunner(runner),
	)
	ledgerSvc := ledgerService.New(ledgerStore, registrySvc, recorder, log,
		ledgerService.WithMetrics(m),
		ledgerService.WithTxRunner(runner),
	)
	visitSvc := visitService.New(visitStore, otpStore, rxStore, pharmacyStore, registrySvc, recorder, log,
		visitService.WithNotifier(notifyService),
		visitService.WithThrottle(otpThrottle),
		visitService.WithMetrics(m),
		visitService.WithTxRunner(runner),
	)
	claimsSvc := claimsService.New(claimsStore, visitSvc, registrySvc, recorder, log,
		claimsService.WithNotifier(notifyService),
		claimsService.WithMetrics(m),
		claimsService.WithTxRunner(runner),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Registry: registryHandler.New(registrySvc),
		Ledger:   ledgerHandler.New(ledgerSvc),
		Visits:   visitHandler.New(visitSvc),
		Claims:   claimsHandler.New(claimsSvc),
		Recorder: recorder,
		Notify:   notifyService,
		Stats:    statsService,
		Logger:   log,
		Metrics:  m,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if outboxStore != nil && len(cfg.KafkaBrokers) > 0 {
		pub, err := publisher.NewKafka(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		outboxWorker := worker.New(outboxStore, pub, log)
		g.Go(func() error {
			err := outboxWorker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		log.Info("audit outbox worker started", "topic", cfg.AuditTopic)
	}

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
