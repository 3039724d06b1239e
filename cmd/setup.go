package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/desertthunder/tunedeck/internal/server"
	"github.com/desertthunder/tunedeck/internal/services"
	"github.com/desertthunder/tunedeck/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultSetupTimeout = 2 * time.Minute

// SetupDatabase creates the config file when missing, initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrationsContext(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// SetupSpotify runs the one-time authorization code flow on a local listener bound to the redirect
// URI, then prints the refresh token and copies it to the clipboard.
//
// The token is not written to the config file; the operator stores it as SPOTIFY_REFRESH_TOKEN.
func (r *Runner) SetupSpotify(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.ValidateSetup(); err != nil {
		return err
	}

	sp := config.Credentials.Spotify
	token, err := r.doOAuth(ctx, services.NewOAuthConfig(sp.ClientID, sp.ClientSecret, sp.RedirectURI), setupOpts{
		timeout:   cmd.Duration("timeout"),
		noBrowser: cmd.Bool("no-browser"),
	})
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("Refresh token:\n\n%s\n\n", token.RefreshToken)

	if !cmd.Bool("no-clipboard") {
		if err := clipboard.WriteAll(token.RefreshToken); err != nil {
			r.logger.Warn("failed to copy refresh token to clipboard", "error", err)
		} else {
			r.writePlain("✓ Copied to clipboard\n")
		}
	}

	r.writePlain("Set it as SPOTIFY_REFRESH_TOKEN (or credentials.spotify.refresh_token) and run 'tunedeck serve'.\n")
	return nil
}

type setupOpts struct {
	timeout   time.Duration
	noBrowser bool
}

// callbackAddr returns the listen address and callback path for a redirect URI.
func callbackAddr(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, redirectURI)
	}
	host, port := u.Hostname(), u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return net.JoinHostPort(host, port), path, nil
}

// doOAuth executes the authorization code flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, conf *oauth2.Config, opts setupOpts) (*oauth2.Token, error) {
	if opts.timeout <= 0 {
		opts.timeout = defaultSetupTimeout
	}

	addr, path, err := callbackAddr(conf.RedirectURL)
	if err != nil {
		return nil, err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := server.NewSetupHandler(server.SetupHandlerOpts{
		Config:    conf,
		State:     state,
		SingleUse: true,
		Logger:    r.logger,
	})
	router := server.NewBasicRouter()
	router.Handle(http.MethodGet, path, handler)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting setup callback server at %v", addr)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := handler.AuthURL(state)
	if opts.noBrowser {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(ctx, authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", opts.timeout)

	timeout := time.NewTimer(opts.timeout)
	defer timeout.Stop()

	var result server.SetupResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, opts.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := result.Error(); err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	if result.Token == nil || result.Token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}
