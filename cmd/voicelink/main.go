// Command voicelink streams interview audio to the analysis backend and
// relays its live assistance back to the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atluriin/voicelink/internal/app"
	"github.com/atluriin/voicelink/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "voicelink.yaml", "path to the YAML configuration file")
	roomID := flag.String("room", "", "join an existing room instead of creating one")
	intensity := flag.Int("intensity", 0, "override assist intensity (1-3)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("voicelink", app.Version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicelink: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicelink: %v\n", err)
		}
		return 1
	}
	if *roomID != "" {
		cfg.Room.ID = *roomID
	}
	if *intensity != 0 {
		cfg.Assist.Intensity = *intensity
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "voicelink: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voicelink starting",
		"version", app.Version,
		"config", *configPath,
		"backend", cfg.Backend.URL,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	printStartupSummary(cfg, application.Room().RoomID())
	slog.Info("streaming — press Ctrl+C to stop")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, roomID string) {
	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║            voicelink — startup summary               ║")
	fmt.Println("╠══════════════════════════════════════════════════════╣")
	printRow("Room", roomID)
	printRow("Backend", cfg.Backend.URL)
	printRow("Candidate", string(cfg.Audio.CandidateSource))
	printRow("Interviewer", string(cfg.Audio.InterviewerSource))
	printRow("Intensity", fmt.Sprintf("%d", cfg.Assist.Intensity))
	if cfg.Server.ListenAddr != "" {
		printRow("Status addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚══════════════════════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 36 {
		value = value[:33] + "…"
	}
	fmt.Printf("║  %-12s : %-36s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
