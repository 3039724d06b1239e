package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/tunedeck/internal/services"
	"github.com/desertthunder/tunedeck/internal/shared"
	"github.com/urfave/cli/v3"
)

const version = "0.3.0"

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("TUNEDECK_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config, err := shared.ResolveConfig(configPath)
	if err != nil {
		logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		config = shared.DefaultConfig()
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		API:        services.NewAPIService(config.Player.ServerURL, nil),
		Logger:     logger,
		Version:    version,
	})

	app := &cli.Command{
		Name:     "tunedeck",
		Usage:    "Terminal music player with a token-holding companion server",
		Version:  version,
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
