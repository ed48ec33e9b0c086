package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/7aylabs/popchain/internal/app"
	"github.com/7aylabs/popchain/internal/config"
	"github.com/7aylabs/popchain/internal/telemetry"
)

func main() {
	cfg := config.Load()

	// Structured logging to stdout.
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Root context, cancelled on interrupt.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("popchain starting...")

	shutdownTracer, err := telemetry.InitTracer()
	if err != nil {
		log.Printf("Warning: tracer initialization failed: %v", err)
	} else {
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := shutdownTracer(shutdownCtx); err != nil {
				log.Printf("Tracer shutdown error: %v", err)
			}
		}()
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer application.Close()

	slog.Info("popchain started, press Ctrl+C to exit",
		"addr", cfg.Addr,
		"mock", cfg.MockMode,
		"scan_interval_secs", cfg.ScanIntervalSecs,
	)

	if err := application.Run(ctx); err != nil {
		slog.Error("fatal error", "error", err)
		cancel()
		os.Exit(1)
	}

	// Grace period for component shutdown.
	time.Sleep(1 * time.Second)
	slog.Info("shutting down...")
}
