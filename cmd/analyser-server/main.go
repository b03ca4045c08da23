package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lllllllleong/pricingextractor/internal/config"
	"github.com/Lllllllleong/pricingextractor/internal/handlers"
	"github.com/Lllllllleong/pricingextractor/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyser, err := services.NewAnalyserFromConfig(ctx, cfg)
	if err != nil {
		slog.Error("Critical error during initialization", "error", err)
		os.Exit(1)
	}
	defer analyser.Close()

	n := handlers.NewRouter(handlers.NewAnalyseHandler(analyser, cfg.Server))
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      n,
		IdleTimeout:  time.Minute,
		ReadTimeout:  time.Minute,
		WriteTimeout: cfg.Server.RequestTimeout + 30*time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Listening.", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
