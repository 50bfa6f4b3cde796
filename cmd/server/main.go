package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"thinkflow/internal/auth"
	"thinkflow/internal/config"
	"thinkflow/internal/httpapi"
	"thinkflow/internal/service"
	"thinkflow/internal/store"
	"thinkflow/internal/store/memory"
	"thinkflow/internal/store/postgres"
	"thinkflow/internal/store/redisfeed"
	"thinkflow/internal/syncer"
)

// storage is everything main needs from the configured backing store.
type storage struct {
	backend     store.Backend
	sessions    store.SessionsStore
	credentials store.CredentialsStore
	ping        func(context.Context) error
	close       func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	st, err := openStorage(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("store open failed", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer st.close()

	layer := syncer.New(st.backend, syncer.Options{Logger: logger})
	if err := layer.Start(context.Background()); err != nil {
		logger.Error("initial snapshot failed", "err", err)
		os.Exit(1)
	}
	defer layer.Close()

	seedSvc := &service.SeedService{Sync: layer, Enabled: cfg.SeedDemo}
	authSvc := &service.AuthService{
		Sync:        layer,
		Sessions:    st.sessions,
		Credentials: st.credentials,
		Verifier: &auth.IDTokenVerifier{
			GoogleClientID: cfg.GoogleClientID,
			AppleServiceID: cfg.AppleServiceID,
		},
		Seed:       seedSvc,
		Logger:     logger,
		SessionTTL: cfg.SessionTTL,
	}

	var origins []string
	if cfg.PublicURL != nil {
		origins = append(origins, cfg.PublicURL.Scheme+"://"+cfg.PublicURL.Host)
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:         logger,
		IsProd:         cfg.IsProd(),
		StorePing:      st.ping,
		Auth:           authSvc,
		Thoughts:       &service.ThoughtsService{Sync: layer},
		Friends:        &service.FriendsService{Sync: layer},
		Feed:           &service.FeedService{Sync: layer},
		Users:          &service.UsersService{Sync: layer},
		Stream:         layer,
		Cookies:        auth.NewSessionCookies([]byte(cfg.CookieSecret), cfg.SessionTTL, cfg.CookieSecure()),
		AllowedOrigins: origins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "store", cfg.Store)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Open streams are hijacked; closing the sync layer ends them.
		layer.Close()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.Store != config.StorePostgres {
		logger.Info("using in-memory store; data is lost on restart")
		backend := memory.New()
		return &storage{
			backend:     backend,
			sessions:    memory.NewSessionsStore(),
			credentials: memory.NewCredentialsStore(),
			close:       func() { _ = backend.Close() },
		}, nil
	}

	pool, err := postgres.Open(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	var (
		notifier postgres.Notifier
		rdb      *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisfeed.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			pool.Close()
			return nil, err
		}
		notifier = redisfeed.New(rdb, redisfeed.Opts{Logger: logger})
		logger.Info("change feed enabled", "redis_addr", cfg.RedisAddr)
	} else {
		logger.Info("change feed disabled; polling for changes", "interval", cfg.PollInterval)
	}

	backend := postgres.NewBackend(pool, postgres.BackendOpts{
		Notifier:     notifier,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})
	return &storage{
		backend:     backend,
		sessions:    postgres.NewSessionsStore(pool),
		credentials: postgres.NewCredentialsStore(pool),
		ping:        pool.Ping,
		close: func() {
			_ = backend.Close()
			if rdb != nil {
				_ = rdb.Close()
			}
			pool.Close()
		},
	}, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
