package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/tunedeck/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP service until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = int(port)
	}
	if cmd.Bool("now-playing") {
		config.Server.NowPlaying = true
	}

	if err := config.ValidateServer(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Options{
		Config:  config,
		Version: r.version,
		Logger:  r.logger,
	})
	return srv.Run(ctx)
}
