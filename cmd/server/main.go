package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/nckslvrmn/stash/internal/config"
	"github.com/nckslvrmn/stash/internal/governor"
	"github.com/nckslvrmn/stash/internal/server"
	"github.com/nckslvrmn/stash/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("STASH_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := storage.Close(store); err != nil {
			log.Warnf("closing storage: %v", err)
		}
	}()

	gov := governor.New(cfg.Cooldown, cfg.MaxFailedAttempts)
	go gov.Run(ctx, cfg.SweepInterval)

	e, err := server.New(cfg, store, gov)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		e.Logger.Infof("listening on %s", cfg.ServerAddress)
		if err := e.Start(cfg.ServerAddress); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-ctx.Done()

	e.Logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Error(err)
	}

	e.Logger.Info("Server shutdown complete")
}
