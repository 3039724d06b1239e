// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// serveCommand runs the token, proxy and setup endpoints
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP service that hands out tokens and proxies the Web API",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port)",
			},
			&cli.BoolFlag{
				Name:  "now-playing",
				Usage: "Enable the /api/now-playing websocket feed",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for the database and the refresh token.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file and database, then run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:    "spotify",
				Aliases: []string{"auth"},
				Usage:   "Authorize once and print the refresh token for SPOTIFY_REFRESH_TOKEN",
				Flags: []cli.Flag{
					configFlag(),
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: defaultSetupTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
					&cli.BoolFlag{
						Name:  "no-clipboard",
						Usage: "Do not copy the refresh token to the clipboard",
					},
				},
				Action: r.SetupSpotify,
			},
		},
	}
}

// tokenCommand fetches an access token from a running server
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Fetch an access token from the running server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output {\"token\": ...} JSON",
			},
		},
		Action: r.Token,
	}
}

// apiCommand handles direct (proxy) API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the server's Web API proxy",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET a Web API path through the proxy, prints JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "compact",
						Usage: "Print compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:   "health",
				Usage:  "Check the server's /health endpoint",
				Action: r.APIHealth,
			},
		},
	}
}

// playerCommand returns the top-level TUI command.
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "player",
		Aliases: []string{"play", "tui"},
		Usage:   "Launch the terminal player",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "device",
				Usage: "Device name to control (overrides player.device_name)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record played tracks",
			},
		},
		Action: r.Player,
	}
}

// historyCommand prints recorded plays.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recently played tracks",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of plays (0 for all)",
				Value:   25,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, markdown, csv or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "Show the N most played tracks instead",
			},
		},
		Action: r.History,
	}
}
