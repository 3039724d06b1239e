package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/tunedeck/internal/shared"
	"github.com/urfave/cli/v3"
)

// Token prints an access token minted by the running server.
func (r *Runner) Token(ctx context.Context, cmd *cli.Command) error {
	token, err := r.api.AccessToken(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]string{"token": token}, false)
	}
	return r.writePlain("%s\n", token)
}

// APIGet makes a GET request through the server's Web API proxy
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")

	r.logger.Info("GET request", "path", path)

	raw, err := r.api.Fetch(ctx, path)
	if err != nil {
		return err
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("%w: proxy returned invalid JSON: %v", shared.ErrAPIRequest, err)
	}
	return r.writeJSON(data, !cmd.Bool("compact"))
}

// APIHealth checks the server by calling the /health endpoint.
func (r *Runner) APIHealth(ctx context.Context, cmd *cli.Command) error {
	resp, err := r.api.Get(ctx, "/health")
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}

	status, version := "unknown", "unknown"
	if data, ok := resp.JSONData.(map[string]any); ok {
		if s, ok := data["status"].(string); ok {
			status = s
		}
		if v, ok := data["version"].(string); ok {
			version = v
		}
	}

	r.writePlain("✓ Server is healthy\n")
	r.writePlain("Status: %s\n", status)
	return r.writePlain("Version: %s\n", version)
}
