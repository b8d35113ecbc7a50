package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/contre95/soulscan/src/features/config"
	"github.com/contre95/soulscan/src/features/hosting"
	"github.com/contre95/soulscan/src/features/logging"
	"github.com/contre95/soulscan/src/features/metrics"
	"github.com/contre95/soulscan/src/features/notify"
	"github.com/contre95/soulscan/src/features/scanning"
	"github.com/contre95/soulscan/src/infra/database"
	"github.com/contre95/soulscan/src/infra/tag"
	"github.com/contre95/soulscan/src/infra/watcher"
)

func main() {
	configPath := "config.yaml"
	if path := os.Getenv("SOULSCAN_CONFIG"); path != "" {
		configPath = path
	}

	// Load configuration
	cfgManager, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Setup default logger with slog
	logger := logging.SetupLogger(cfgManager)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create the database store
	store, err := database.NewSqliteStore(cfgManager.Get().Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	// Create the scanner service
	scanService, err := scanning.NewService(store, tag.NewTagReader(), cfgManager)
	if err != nil {
		log.Fatalf("failed to create scanner: %v", err)
	}

	metricsService := metrics.NewService(store)
	metricsService.Subscribe(scanService.Events())
	notify.NewWebhook(cfgManager).Subscribe(scanService.Events())

	scanService.Start(ctx)
	defer scanService.Stop()
	if cfgManager.Get().Scanner.ScanOnStartup {
		scanService.RequestImmediateScan(scanning.ScanOptions{})
	}

	// Watch the libraries and queue a scan after each burst of changes
	if cfgManager.Get().Scanner.Watch {
		events := make(chan watcher.FileEvent, 1)
		fileWatcher, err := watcher.NewWatcher(events, scanService.Handles)
		if err != nil {
			slog.Error("Failed to create file watcher", "error", err)
		} else if err := fileWatcher.Start(ctx, scanService.Libraries()); err != nil {
			slog.Error("Failed to start file watcher", "error", err)
		} else {
			defer fileWatcher.Stop()
			go func() {
				for {
					select {
					case event := <-events:
						slog.Info("Library changed, requesting scan", "path", event.Path, "changes", event.Count)
						scanService.RequestImmediateScan(scanning.ScanOptions{})
					case <-ctx.Done():
						return
					}
				}
			}()
		}
	}

	// Create and start the Telegram bot if enabled
	var telegramBot *hosting.TelegramBot
	if cfgManager.Get().Telegram.Enabled {
		telegramBot, err = hosting.NewTelegramBot(cfgManager, scanService)
		if err != nil {
			slog.Error("Failed to initialize Telegram bot", "error", err)
		} else {
			go telegramBot.Start()
			slog.Info("Telegram bot started")
		}
	}

	// Create and start the HTTP server
	server := hosting.NewServer(cfgManager, scanService, metricsService)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("Server stopped", "error", err)
			stop()
		}
	}()
	slog.Info("Server started. Press Ctrl+C to shut down.", "port", cfgManager.Get().Server.Port)

	// Wait for a shutdown signal
	<-ctx.Done()
	slog.Info("Shutting down server...")

	if telegramBot != nil {
		telegramBot.Stop()
		slog.Info("Telegram bot stopped")
	}

	if err := server.Shutdown(); err != nil {
		slog.Error("Failed to shutdown server", "error", err)
	}
	slog.Info("Server gracefully shut down.")
}
