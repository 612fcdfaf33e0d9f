// Package main runs the forgegate API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/mscno/forgegate/authz"
	"github.com/mscno/forgegate/org"
	"github.com/mscno/forgegate/server"
	"github.com/mscno/forgegate/server/middleware"
	"github.com/mscno/forgegate/store"
	"github.com/mscno/forgegate/tokens"
)

const (
	shutdownTimeout = 10 * time.Second

	// Per-client request budget: 5 req/s sustained, bursts of 20.
	rateLimitInterval = time.Second / 5
	rateLimitBurst    = 20
)

type config struct {
	Addr      string `help:"Listen address." default:":8080" env:"FORGEGATE_ADDR"`
	Store     string `help:"Storage backend: memory, bolt or datastore." default:"memory" enum:"memory,bolt,datastore" env:"FORGEGATE_STORE"`
	BoltPath  string `help:"Path to the bolt database file." default:"forgegate.db" env:"FORGEGATE_BOLT_PATH"`
	ProjectID string `help:"Google Cloud project for the datastore backend." env:"FORGEGATE_GCP_PROJECT"`
	CredsFile string `help:"Service account credentials file for the datastore backend." env:"FORGEGATE_GCP_CREDENTIALS"`
	LogLevel  string `help:"Log level: debug, info, warn or error." default:"info" enum:"debug,info,warn,error" env:"FORGEGATE_LOG_LEVEL"`
}

func main() {
	_ = godotenv.Load()

	var cfg config
	kong.Parse(&cfg,
		kong.UsageOnError(),
		kong.Name("forgegate-server"),
		kong.Description("forgegate-server serves the organization and permission API"),
	)

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config) error {
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	resolver := authz.NewResolver(st, st, logger)
	orgSvc := org.NewService(st, resolver, logger)
	tokenSvc := tokens.NewService(st, st, logger)
	handler := server.NewHandler(st, orgSvc, tokenSvc, logger)

	limiter := middleware.NewRateLimiter(logger, middleware.IPAddressKeyFunc, rate.Every(rateLimitInterval), rateLimitBurst)

	s := server.NewServer()
	s.Use(
		middleware.RecoveryMiddleware,
		middleware.WithLogger(logger),
		middleware.WithCORS(),
		limiter.Limit,
		middleware.WithAuth(tokenSvc.Verify),
	)
	handler.Register(s)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "store", cfg.Store)
		errCh <- s.ListenAndServe(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.Store {
	case "bolt":
		bs, err := store.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening bolt store: %w", err)
		}
		logger.Info("using bolt store", "path", cfg.BoltPath)
		return bs, func() { _ = bs.Close() }, nil
	case "datastore":
		if cfg.ProjectID == "" {
			return nil, nil, fmt.Errorf("datastore backend requires a project ID")
		}
		var opts []option.ClientOption
		if cfg.CredsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredsFile))
		}
		client, err := datastore.NewClient(ctx, cfg.ProjectID, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("creating datastore client: %w", err)
		}
		logger.Info("using datastore", "project", cfg.ProjectID)
		return store.NewDataStore(ctx, client), func() { _ = client.Close() }, nil
	default:
		logger.Info("using in-memory store")
		return store.NewMemoryStore(), func() {}, nil
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
