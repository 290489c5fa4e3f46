package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aetherium-labs/aetherium-backend/config"
	"github.com/aetherium-labs/aetherium-backend/internal/bootstrap"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Options{
		Level:      cfg.App.LogLevel,
		File:       cfg.Log.File,
		Production: cfg.App.Environment == "production",
	})
	defer logger.Sync()
	logging.SetBase(logger)

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, cfg, nil)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	// Request contexts derive from baseCtx so that open SSE streams end when
	// shutdown starts instead of holding it until the timeout.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.Storage.Backend),
			zap.String("blobs", cfg.Storage.BlobBackend),
			zap.String("auth", cfg.Server.AuthMode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		srvErr := srv.Shutdown(shutdownCtx)
		appErr := app.Shutdown(shutdownCtx)
		return errors.Join(srvErr, appErr)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
