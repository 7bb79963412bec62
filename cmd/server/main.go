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

	"communitysite/internal/auth"
	"communitysite/internal/config"
	"communitysite/internal/db"
	"communitysite/internal/events"
	api "communitysite/internal/http"
	"communitysite/internal/i18n"
	"communitysite/internal/kv"
	"communitysite/internal/logger"
	"communitysite/internal/milestone"
	"communitysite/internal/repo"
	"communitysite/internal/service"
	"communitysite/internal/syncclient"
	"communitysite/internal/triggers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	catalog, err := milestone.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	hasher, err := milestone.NewHasher(cfg.MilestoneSalt)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	store, closeStore, err := openKV(ctx, cfg, log, bus)
	if err != nil {
		return err
	}
	defer closeStore()

	authManager := auth.NewManager(cfg.JWTSecret)
	var svc *service.Service
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		defer pool.Close()
		if err := db.RunMigrations(ctx, pool, db.Migrations(cfg.MigrationsDir), log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		svc = service.New(repo.New(pool), authManager)
	} else {
		log.Warn("DATABASE_URL not set, accounts and contact storage disabled")
	}

	var syncer milestone.Syncer
	switch {
	case cfg.SyncURL != "":
		syncer = syncclient.New(cfg.SyncURL, cfg.SyncAPIKey)
	case svc != nil:
		syncer = svc
	}

	engine, err := milestone.NewEngine(milestone.Options{
		Hasher:       hasher,
		Catalog:      catalog,
		KV:           store,
		Bus:          bus,
		Presenter:    milestone.BusPresenter{Bus: bus},
		Syncer:       syncer,
		Log:          log,
		ToastDisplay: time.Duration(cfg.ToastDisplayMs) * time.Millisecond,
		ToastFade:    time.Duration(cfg.ToastFadeMs) * time.Millisecond,
		SessionIdle:  cfg.SessionIdle,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	triggerSet := triggers.NewSet(catalog)
	go triggerSet.PruneEvery(ctx, max(cfg.SessionIdle/4, time.Minute), cfg.SessionIdle)

	handler := &api.API{
		Log:        log,
		Engine:     engine,
		Triggers:   triggerSet,
		I18n:       i18n.NewBundle(),
		Service:    svc,
		Auth:       authManager,
		Origins:    cfg.CORSOrigins,
		SyncAPIKey: cfg.SyncAPIKey,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Port, "milestones", catalog.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Open streams hold Shutdown until the deadline.
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Warn("server shutdown error", "error", err)
	}
	return nil
}

// openKV picks the visitor store: Redis when configured (also relaying bus
// events between instances), then SQLite, then memory.
func openKV(ctx context.Context, cfg config.Config, log *logger.Logger, bus *events.Bus) (kv.Store, func(), error) {
	if cfg.RedisAddr != "" {
		rdb, err := kv.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		relay, err := events.NewRedisRelay(log, rdb.Client, cfg.RedisChannel, bus)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		if err := relay.Start(ctx); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		log.Info("using redis visitor store", "addr", cfg.RedisAddr)
		return rdb, func() {
			relay.Close()
			_ = rdb.Close()
		}, nil
	}
	if cfg.SQLitePath != "" {
		sqlite, err := kv.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using sqlite visitor store", "path", cfg.SQLitePath)
		return sqlite, func() { _ = sqlite.Close() }, nil
	}
	log.Warn("no REDIS_ADDR or SQLITE_PATH, visitor milestones are kept in memory")
	return kv.NewMemory(), func() {}, nil
}
