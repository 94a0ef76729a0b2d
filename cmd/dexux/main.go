package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/config"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/history"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/nonce"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/server"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/store"
	"github.com/squidKid-deluxe/bitshares-dex-ux/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/dexux.local.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("starting dexux",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to the market cache database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool, logger)
	if err := st.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// Optional hot payload cache
	var cache *store.PayloadCache
	if cfg.Redis.Addr != "" {
		cache, err = store.NewPayloadCache(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("payload cache unavailable, serving without it", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			logger.Info("payload cache connected", "addr", cfg.Redis.Addr)
		}
	}

	// Nonce issuance, shared across processes when a lock path is set
	nonces := nonce.NewAllocator()
	if cfg.Nodes.NonceLockPath != "" {
		nonces = nonce.NewSharedAllocator(cfg.Nodes.NonceLockPath)
	}

	fetcher := history.NewFetcher(cfg.History, st, st, logger)
	ws := server.New(*cfg, st, fetcher, cache, nonces, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: ws.Routes(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Listen)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("dexux stopped")
}

// logLevel maps the config string onto a slog level, info by default.
func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
