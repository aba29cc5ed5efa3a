package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/config-rotator/app/api"
	"github.com/lysyi3m/config-rotator/app/cfg"
	"github.com/lysyi3m/config-rotator/app/feed"
	"github.com/lysyi3m/config-rotator/app/lock"
	"github.com/lysyi3m/config-rotator/app/rotator"
	"github.com/lysyi3m/config-rotator/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	cfg.SetupLogging(appCfg.Debug)

	slog.Info("Starting Config Rotator feed server", "version", appCfg.Version)

	store := feed.NewStore(appCfg.FeedRoot, appCfg.BaseUrl)
	guard := lock.NewGuard(lock.Options{
		Timeout:      appCfg.LockTimeout,
		PollInterval: appCfg.LockPollInterval,
		FileLock:     appCfg.FileLock,
	})
	recorder := rotator.NewRecorder(store, guard)

	if feeds, err := store.List(); err != nil {
		slog.Warn("Failed to scan feed root", "root", store.Root(), "error", err)
	} else {
		slog.Info("Feed root scanned", "root", store.Root(), "feeds", len(feeds))
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(store)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(store, recorder, scheduler, appCfg.Version)
	engine := api.NewServer(handler, appCfg.APIAccessKey, appCfg.Debug)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "feed_root", store.Root())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
}
