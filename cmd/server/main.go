package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blackout.chat/config"
	"blackout.chat/internal/api"
	"blackout.chat/internal/protect"
	"blackout.chat/internal/store"
	"blackout.chat/internal/sweeper"

	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	if !cfg.Production() && cfg.Crypto.Secret == config.InsecureDefaultSecret {
		logger.Warn("using the built-in encryption secret; set ENCRYPTION_KEY before deploying")
	}

	st, err := initStore(cfg)
	if err != nil {
		logger.Error("store init failed", "err", err)
		os.Exit(1)
	}

	engine := protect.NewEngine(st, cfg, logger)

	sw := sweeper.New(st, cfg.Protect.SweepInterval, logger)
	sw.Start()

	router := api.SetupRouter(engine, cfg, logger)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.Addr(), "store", cfg.Store.Type)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")

	// Teardown order: stop the sweeper, drain in-flight requests, then
	// close the store.
	sw.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "err", err)
	}

	if err := st.Close(); err != nil {
		logger.Error("store close error", "err", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelDebug
	if cfg.Production() {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func initStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.SQLite.Path)
	case "redis":
		return store.NewRedisStore(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
	default:
		return store.NewMemoryStore(), nil
	}
}
