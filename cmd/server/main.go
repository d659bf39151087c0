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

	httpadapter "contentaudit/internal/adapters/http"
	"contentaudit/internal/adapters/memory"
	pg "contentaudit/internal/adapters/postgres"
	"contentaudit/internal/adapters/redisstore"
	"contentaudit/internal/config"
	"contentaudit/internal/logging"
	"contentaudit/internal/ports"
	"contentaudit/internal/services/healthscore"
	"contentaudit/internal/services/lifecycle"
	"contentaudit/internal/services/quota"
	"contentaudit/internal/services/reconcile"
	"contentaudit/internal/workers/reconcilerunner"
)

type stores struct {
	audits    ports.AuditRepository
	lifecycle ports.LifecycleRepository
	quota     ports.QuotaRepository
	jobs      ports.JobRepository
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, cfgErr := config.Load()
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if cfgErr != nil && !(errors.Is(cfgErr, config.ErrNoDatabase) && cfg.Development()) {
		return cfgErr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st stores
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		mem := memory.New()
		st = stores{audits: mem, lifecycle: mem, quota: mem, jobs: mem}
	} else {
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, "up"); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied")
		}
		st = stores{audits: db, lifecycle: db, quota: db, jobs: db}
	}

	switch cfg.QuotaBackend {
	case "redis":
		rdb, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		st.quota = redisstore.New(rdb)
		log.Info("quota counters in redis")
	case "memory":
		st.quota = memory.New()
		log.Warn("quota counters in process memory, not shared across replicas")
	}

	engine := reconcile.New(st.audits, log)
	processor := reconcilerunner.ReconcileProcessor{Jobs: st.jobs, Reconciler: engine}
	srv := httpadapter.New(httpadapter.Deps{
		Audits:      st.audits,
		Jobs:        st.jobs,
		Processor:   processor,
		Lifecycle:   lifecycle.New(st.audits, st.lifecycle, log),
		Scores:      healthscore.New(st.audits),
		Quotas:      quota.New(st.quota, log),
		Tiers:       cfg.Tiers,
		DefaultTier: cfg.DefaultTier,
		Log:         log,
	})

	if cfg.ReconcileWorkers > 0 {
		go reconcilerunner.Run(ctx, st.jobs, processor, cfg.ReconcileWorkers, 500*time.Millisecond, log)
		log.Info("reconcile workers started", "count", cfg.ReconcileWorkers)
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env, "default_tier", cfg.DefaultTier)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
	return nil
}
