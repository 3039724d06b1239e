package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/desertthunder/tunedeck/internal/repositories"
	"github.com/desertthunder/tunedeck/internal/server"
	"github.com/desertthunder/tunedeck/internal/services"
	"github.com/desertthunder/tunedeck/internal/shared"
	tu "github.com/desertthunder/tunedeck/internal/testing"
	"github.com/urfave/cli/v3"
)

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) AccessToken(ctx context.Context) (string, error) {
	return f.token, f.err
}

type fakeFetcher struct {
	body  string
	err   error
	paths []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, path string) (json.RawMessage, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.body), nil
}

// newTestServer runs the real router with fake token and Web API dependencies.
func newTestServer(t *testing.T, tokens *fakeTokens, fetcher *fakeFetcher) *httptest.Server {
	t.Helper()
	cfg := shared.DefaultConfig()
	cfg.Server.RateLimit = 0
	srv := httptest.NewServer(server.New(server.Options{
		Config:  cfg,
		Version: "test",
		Logger:  shared.NewLogger(&bytes.Buffer{}),
		Tokens:  tokens,
		Fetcher: fetcher,
	}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newTestRunner(t *testing.T, serverURL string, config *shared.Config) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	if config == nil {
		config = shared.DefaultConfig()
	}
	return NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: "config.toml",
		API:        services.NewAPIService(serverURL, nil),
		Logger:     shared.NewLogger(&bytes.Buffer{}),
		Output:     output,
		Version:    "test",
	}), output
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{
		Name:     "tunedeck",
		Commands: r.register(),
		Writer:   &bytes.Buffer{},
	}
	return app.Run(context.Background(), append([]string{"tunedeck"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			api := services.NewAPIService("http://example.test", httpClient)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				API:        api,
				Version:    "1.2.3",
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.version != "1.2.3" {
				t.Errorf("expected version to be set, got %s", runner.version)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.api == nil {
				t.Error("expected an API client built from the config")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: tu.NewLimitedWriter(1, &bytes.Buffer{})})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlain("hello %s", "world"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "hello world" {
			t.Errorf("expected 'hello world', got %q", output.String())
		}

		failing := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := failing.writePlain("test"); err == nil {
			t.Error("expected error from failing writer")
		}
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		names := map[string]bool{}
		for _, c := range runner.register() {
			names[c.Name] = true
		}

		for _, want := range []string{"serve", "setup", "token", "api", "player", "history"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

func TestServerCommands(t *testing.T) {
	t.Run("Token", func(t *testing.T) {
		srv := newTestServer(t, &fakeTokens{token: "abc"}, &fakeFetcher{})
		runner, output := newTestRunner(t, srv.URL, nil)

		if err := run(t, runner, "token"); err != nil {
			t.Fatalf("token failed: %v", err)
		}
		if output.String() != "abc\n" {
			t.Errorf("expected abc, got %q", output.String())
		}

		output.Reset()
		if err := run(t, runner, "token", "--json"); err != nil {
			t.Fatalf("token failed: %v", err)
		}
		if output.String() != `{"token":"abc"}`+"\n" {
			t.Errorf("unexpected JSON output %q", output.String())
		}
	})

	t.Run("Token Failure", func(t *testing.T) {
		srv := newTestServer(t, &fakeTokens{err: &shared.AuthError{Body: `{"error":"invalid_grant"}`}}, &fakeFetcher{})
		runner, _ := newTestRunner(t, srv.URL, nil)

		err := run(t, runner, "token")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("API Get", func(t *testing.T) {
		fetcher := &fakeFetcher{body: `{"items":[{"id":"p1"}]}`}
		srv := newTestServer(t, &fakeTokens{token: "abc"}, fetcher)
		runner, output := newTestRunner(t, srv.URL, nil)

		if err := run(t, runner, "api", "get", "/me/playlists?limit=50"); err != nil {
			t.Fatalf("api get failed: %v", err)
		}
		if len(fetcher.paths) != 1 || fetcher.paths[0] != "/me/playlists?limit=50" {
			t.Errorf("expected proxied path, got %v", fetcher.paths)
		}
		if !strings.Contains(output.String(), `"id": "p1"`) {
			t.Errorf("expected pretty JSON, got %s", output.String())
		}
	})

	t.Run("API Get Upstream Error", func(t *testing.T) {
		fetcher := &fakeFetcher{err: &shared.UpstreamError{Status: 404, Path: "/nope"}}
		srv := newTestServer(t, &fakeTokens{token: "abc"}, fetcher)
		runner, _ := newTestRunner(t, srv.URL, nil)

		err := run(t, runner, "api", "get", "/nope")
		if !errors.Is(err, shared.ErrAPIRequest) || !strings.Contains(err.Error(), "502") {
			t.Errorf("expected proxied 502, got %v", err)
		}
	})

	t.Run("API Health", func(t *testing.T) {
		srv := newTestServer(t, &fakeTokens{}, &fakeFetcher{})
		runner, output := newTestRunner(t, srv.URL, nil)

		if err := run(t, runner, "api", "health"); err != nil {
			t.Fatalf("api health failed: %v", err)
		}
		if !strings.Contains(output.String(), "Version: test") {
			t.Errorf("expected version in output, got %s", output.String())
		}
	})

	t.Run("Serve Requires Refresh Token", func(t *testing.T) {
		runner, _ := newTestRunner(t, "", nil)
		if err := run(t, runner, "serve"); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})

	t.Run("Setup Requires Credentials", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientID = ""
		runner, _ := newTestRunner(t, "", config)
		if err := run(t, runner, "setup", "spotify"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestCallbackAddr(t *testing.T) {
	tc := []struct {
		uri      string
		wantAddr string
		wantPath string
		wantErr  bool
	}{
		{uri: "http://127.0.0.1:3000/api/setup", wantAddr: "127.0.0.1:3000", wantPath: "/api/setup"},
		{uri: "http://localhost/callback", wantAddr: "localhost:80", wantPath: "/callback"},
		{uri: "https://example.com", wantAddr: "example.com:443", wantPath: "/"},
		{uri: "not a uri", wantErr: true},
	}

	for _, tt := range tc {
		addr, path, err := callbackAddr(tt.uri)
		if tt.wantErr {
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("%s: expected ErrInvalidConfig, got %v", tt.uri, err)
			}
			continue
		}
		if err != nil || addr != tt.wantAddr || path != tt.wantPath {
			t.Errorf("%s: expected %s %s, got %s %s (%v)", tt.uri, tt.wantAddr, tt.wantPath, addr, path, err)
		}
	}
}

func TestHistoryCommand(t *testing.T) {
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "tunedeck.db")

	db, err := shared.OpenDatabase(context.Background(), config.Database)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	repo := repositories.NewHistoryRepository(db)
	start := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "a"} {
		track := models.Track{ID: id, Name: "Song " + id, URI: "spotify:track:" + id, DurationMs: 200000,
			Artists: []models.Artist{{Name: "Artist"}}}
		if err := repo.Record(context.Background(), models.NewPlay(track, "dev", start.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("failed to record play: %v", err)
		}
	}
	db.Close()

	t.Run("Text", func(t *testing.T) {
		runner, output := newTestRunner(t, "", config)
		if err := run(t, runner, "history", "--limit", "2"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(output.String()), "\n")
		if len(lines) != 2 || !strings.Contains(lines[0], "Song a") || !strings.Contains(lines[1], "Song b") {
			t.Errorf("unexpected history output:\n%s", output.String())
		}
	})

	t.Run("CSV To File", func(t *testing.T) {
		runner, output := newTestRunner(t, "", config)
		path := filepath.Join(t.TempDir(), "history.csv")
		if err := run(t, runner, "history", "--format", "csv", "--output", path); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(output.String(), "Wrote 3 plays") {
			t.Errorf("unexpected output %q", output.String())
		}
		data, err := os.ReadFile(path)
		if err != nil || !strings.HasPrefix(string(data), "Played At,") {
			t.Errorf("unexpected CSV file %q (%v)", data, err)
		}
	})

	t.Run("Top", func(t *testing.T) {
		runner, output := newTestRunner(t, "", config)
		if err := run(t, runner, "history", "--top", "5"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		out := output.String()
		if !strings.Contains(out, "3 plays total") || !strings.Contains(out, "1st") || !strings.Contains(out, "Song a (2 plays)") {
			t.Errorf("unexpected top output:\n%s", out)
		}
	})

	t.Run("Bad Format", func(t *testing.T) {
		runner, _ := newTestRunner(t, "", config)
		if err := run(t, runner, "history", "--format", "yaml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
