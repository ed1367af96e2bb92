package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Skotchmaster/auth_service/internal/config"
	"github.com/Skotchmaster/auth_service/internal/db"
	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/httpserver"
	"github.com/Skotchmaster/auth_service/internal/keys"
	"github.com/Skotchmaster/auth_service/internal/ledger"
	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	material, err := keys.Load(cfg.PrivateKeyPath, cfg.RefreshTokenSecret)
	if err != nil {
		log.Fatalf("keys: %v", err)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, db.Options{Driver: cfg.DBDriver, DSN: cfg.DSN()})
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	var closers []func() error
	if sqlDB, err := gdb.DB(); err == nil {
		closers = append(closers, sqlDB.Close)
	}

	led, ready, ledgerClose := buildLedger(cfg, gdb)
	if ledgerClose != nil {
		closers = append(closers, ledgerClose)
	}

	publisher, publisherClose := buildPublisher(cfg, logger)
	closers = append(closers, publisherClose...)

	mgr := session.NewManager(
		tokens.NewIssuer(material, cfg.ServiceName),
		tokens.NewVerifier(material, cfg.ServiceName),
		led,
	)
	rp := &repo.GormRepo{DB: gdb}

	e := httpserver.New(logger)
	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{
			Svc:     &service.AuthService{Repo: rp, Sessions: mgr, Events: publisher},
			Cookies: httpserver.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure},
		},
		TenantHandler: &httpserver.TenantHTTP{Svc: &service.TenantService{Repo: rp}},
		Verifier:      mgr,
		Ready:         ready,
	})

	runCtx, stopWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if cfg.LedgerBackend == config.LedgerGorm {
		sweeper := &ledger.Sweeper{Ledger: led, Interval: cfg.LedgerSweepInterval, Logger: logger.With("component", "ledger_sweeper")}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Run(runCtx)
		}()
	}

	go func() {
		logger.Info("server_starting", "addr", cfg.Addr, "ledger", cfg.LedgerBackend, "db", cfg.DBDriver)
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("server_stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo_shutdown_failed", "error", err)
	}
	stopWorkers()
	wg.Wait()

	for _, c := range closers {
		if err := c(); err != nil {
			logger.Error("close_failed", "error", err)
		}
	}
}

func buildLedger(cfg config.Config, gdb *gorm.DB) (ledger.Ledger, func(context.Context) error, func() error) {
	dbReady := func(ctx context.Context) error { return db.Ping(ctx, gdb) }

	if cfg.LedgerBackend != config.LedgerRedis {
		return ledger.NewGormLedger(gdb), dbReady, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	ready := func(ctx context.Context) error {
		if err := dbReady(ctx); err != nil {
			return err
		}
		return client.Ping(ctx).Err()
	}
	return ledger.NewRedisLedger(client), ready, client.Close
}

func buildPublisher(cfg config.Config, logger *slog.Logger) (events.Publisher, []func() error) {
	var (
		pubs    events.Multi
		closers []func() error
	)

	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		pubs = append(pubs, kp)
		closers = append(closers, kp.Close)
	}

	if cfg.ESURL != "" {
		audit, err := events.NewAuditIndexer(events.AuditConfig{
			URL:      cfg.ESURL,
			Username: cfg.ESUser,
			Password: cfg.ESPassword,
			Index:    cfg.ESAuditIndex,
		})
		if err != nil {
			logger.Error("audit_disabled", "error", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := audit.Ping(ctx); err != nil {
				logger.Warn("audit_unreachable", "url", cfg.ESURL, "error", err)
			}
			cancel()
			pubs = append(pubs, audit)
		}
	}

	if len(pubs) == 0 {
		return events.Nop{}, nil
	}
	return pubs, closers
}
