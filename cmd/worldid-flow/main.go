// Command worldid-flow runs a World ID verification flow in the terminal:
// it establishes a bridge session, prints the connect URL for the user's
// World App, polls until the request is confirmed or fails, and optionally
// verifies the resulting proof with the Developer Portal.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/worldid/worldid-go/internal/config"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to TOML configuration file")
	appID := flag.String("app-id", os.Getenv("WORLD_APP_ID"), "App ID from the Developer Portal (env: WORLD_APP_ID)")
	action := flag.String("action", "", "Action identifier the proof is scoped to")
	actionDescription := flag.String("action-description", "", "Human-readable description shown in the World App")
	level := flag.String("verification-level", "", "Minimum verification level: orb or device")
	bridgeURL := flag.String("bridge-url", "", "Custom bridge base URL (default: hosted bridge)")
	signalValue := flag.String("signal", "", "Signal string bound into the proof request")
	pollInterval := flag.Int("poll-interval", 0, "Poll interval in milliseconds")
	verifyProof := flag.Bool("verify", false, "Verify the proof with the Developer Portal after confirmation")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	var slogLevel slog.Level
	switch strings.ToLower(*logLevel) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel,
	}))
	slog.SetDefault(logger)

	cfg := config.DefaultFlowConfig()
	if *configPath != "" {
		loaded, err := config.LoadFlowConfig(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags override the config file.
	if *appID != "" {
		cfg.App.ID = *appID
	}
	if *action != "" {
		cfg.App.Action = *action
	}
	if *actionDescription != "" {
		cfg.App.ActionDescription = *actionDescription
	}
	if *level != "" {
		cfg.App.VerificationLevel = *level
	}
	if *bridgeURL != "" {
		cfg.Bridge.URL = *bridgeURL
	}
	if *signalValue != "" {
		cfg.App.Signal = *signalValue
	}
	if *pollInterval > 0 {
		cfg.Bridge.PollIntervalMS = *pollInterval
	}
	if *verifyProof {
		cfg.Verify.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("verification flow failed", "error", err)
		os.Exit(1)
	}
}
