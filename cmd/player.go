package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunedeck/internal/connect"
	"github.com/desertthunder/tunedeck/internal/playback"
	"github.com/desertthunder/tunedeck/internal/repositories"
	"github.com/desertthunder/tunedeck/internal/services"
	"github.com/desertthunder/tunedeck/internal/shared"
	"github.com/desertthunder/tunedeck/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Player launches the terminal player against the configured server.
func (r *Runner) Player(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(config.Player.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(config.Log.Level))
	r.SetLogger(fileLogger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	api := services.NewAPIService(config.Player.ServerURL, r.httpClient)
	webClient := oauth2.NewClient(ctx, services.NewRemoteTokenSource(ctx, api))

	deviceName := cmd.String("device")
	if deviceName == "" {
		deviceName = config.Player.DeviceName
	}
	device := connect.NewDevice(connect.DeviceOpts{
		HTTPClient:   webClient,
		Name:         deviceName,
		PollInterval: config.Player.PollInterval.Duration,
		Logger:       fileLogger,
	})
	// The event relay waits on ctx, so it has to be cancelled before the poller is joined.
	defer func() {
		cancel()
		device.Disconnect()
	}()

	controller := playback.NewController(device,
		playback.WithLogger(fileLogger),
		playback.WithVolume(config.Player.Volume),
	)

	var history ui.History
	if !cmd.Bool("no-history") {
		db, err := shared.OpenDatabase(ctx, config.Database)
		if err != nil {
			fileLogger.Warn("play history disabled", "error", err)
		} else {
			defer db.Close()
			history = repositories.NewHistoryRepository(db)
		}
	}

	model := ui.NewModel(ctx, ui.Options{
		Library:    services.NewLibrary(api),
		Tokens:     api,
		Controller: controller,
		Device:     device,
		History:    history,
		Logger:     fileLogger,
	})
	defer model.Close()

	fileLogger.Info("starting player", "server", config.Player.ServerURL, "device", deviceName)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
