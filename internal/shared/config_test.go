package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./tunedeck.db" {
			t.Errorf("expected database path ./tunedeck.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Player.Volume != 0.7 {
			t.Errorf("expected default volume 0.7, got %v", config.Player.Volume)
		}

		if config.Player.PollInterval.Duration != time.Second {
			t.Errorf("expected player poll interval 1s, got %v", config.Player.PollInterval)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080
poll_interval = "5s"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/api/setup"
refresh_token = "test_refresh"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}
		if config.Server.PollInterval.Duration != 5*time.Second {
			t.Errorf("expected poll interval 5s, got %v", config.Server.PollInterval)
		}
		if config.Credentials.Spotify.RefreshToken != "test_refresh" {
			t.Errorf("expected refresh token test_refresh, got %s", config.Credentials.Spotify.RefreshToken)
		}

		t.Run("unset sections keep defaults", func(t *testing.T) {
			if config.Player.Volume != 0.7 {
				t.Errorf("expected default volume 0.7, got %v", config.Player.Volume)
			}
		})
	})

	t.Run("LoadConfig With Bad Duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[player]\npoll_interval = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for invalid duration")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		env := map[string]string{
			"SPOTIFY_CLIENT_ID":     "env_id",
			"SPOTIFY_REFRESH_TOKEN": "env_refresh",
			"SERVER_PORT":           "4000",
			"LOG_LEVEL":             "debug",
		}
		lookup := func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}

		config := DefaultConfig()
		if err := config.ApplyEnv(lookup); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "env_id" {
			t.Errorf("expected client id env_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.RefreshToken != "env_refresh" {
			t.Errorf("expected refresh token env_refresh, got %s", config.Credentials.Spotify.RefreshToken)
		}
		if config.Server.Port != 4000 {
			t.Errorf("expected port 4000, got %d", config.Server.Port)
		}
		if config.Log.Level != "debug" {
			t.Errorf("expected log level debug, got %s", config.Log.Level)
		}
		if config.Credentials.Spotify.ClientSecret != "your_spotify_client_secret" {
			t.Errorf("expected unset variables to keep file values, got %s", config.Credentials.Spotify.ClientSecret)
		}

		t.Run("invalid port", func(t *testing.T) {
			bad := func(k string) (string, bool) {
				if k == "SERVER_PORT" {
					return "three thousand", true
				}
				return "", false
			}
			if err := DefaultConfig().ApplyEnv(bad); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})

	t.Run("ValidateServer", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.ValidateServer(); !errors.Is(err, ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}

		config.Credentials.Spotify.ClientSecret = ""
		if err := config.ValidateServer(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}

		config = DefaultConfig()
		config.Credentials.Spotify.RefreshToken = "r"
		if err := config.ValidateServer(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("ValidateSetup", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.ValidateSetup(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}

		config.Credentials.Spotify.RedirectURI = ""
		if err := config.ValidateSetup(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}
