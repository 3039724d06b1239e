package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Player      PlayerConfig      `toml:"player"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify app credentials and the long-lived refresh token.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	RefreshToken string `toml:"refresh_token"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string   `toml:"host"`
	Port         int      `toml:"port"`
	RateLimit    float64  `toml:"rate_limit"`
	RateBurst    int      `toml:"rate_burst"`
	NowPlaying   bool     `toml:"now_playing"`
	PollInterval Duration `toml:"poll_interval"`
}

// PlayerConfig contains settings for the terminal player.
type PlayerConfig struct {
	ServerURL    string   `toml:"server_url"`
	DeviceName   string   `toml:"device_name"`
	PollInterval Duration `toml:"poll_interval"`
	Volume       float64  `toml:"volume"`
	LogFile      string   `toml:"log_file"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration wraps [time.Duration] so it can be written as "1s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveConfig loads the file at path when it exists, falls back to defaults, then applies .env and environment overrides.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides config values with environment variables reported by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SPOTIFY_CLIENT_ID":     &c.Credentials.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &c.Credentials.Spotify.ClientSecret,
		"SPOTIFY_REDIRECT_URI":  &c.Credentials.Spotify.RedirectURI,
		"SPOTIFY_REFRESH_TOKEN": &c.Credentials.Spotify.RefreshToken,
		"SERVER_HOST":           &c.Server.Host,
		"TUNEDECK_SERVER_URL":   &c.Player.ServerURL,
		"LOG_LEVEL":             &c.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("SERVER_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SERVER_PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}

	return nil
}

// ValidateServer reports whether the credentials needed to mint access tokens are present.
func (c *Config) ValidateServer() error {
	s := c.Credentials.Spotify
	if s.ClientID == "" || s.ClientSecret == "" {
		return fmt.Errorf("%w: client_id and client_secret are required", ErrMissingCredentials)
	}
	if s.RefreshToken == "" {
		return fmt.Errorf("%w: set SPOTIFY_REFRESH_TOKEN (run 'tunedeck setup spotify')", ErrNoRefreshToken)
	}
	return nil
}

// ValidateSetup reports whether the credentials needed for the authorization code exchange are present.
func (c *Config) ValidateSetup() error {
	s := c.Credentials.Spotify
	if s.ClientID == "" || s.ClientSecret == "" || s.RedirectURI == "" {
		return fmt.Errorf("%w: client_id, client_secret and redirect_uri are required", ErrMissingCredentials)
	}
	return nil
}
