package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	DefaultPlaylistID string         `toml:"default_playlist_id"`
	Spotify           SpotifyConfig  `toml:"spotify"`
	Store             StoreConfig    `toml:"store"`
	Database          DatabaseConfig `toml:"database"`
	Slots             SlotsConfig    `toml:"slots"`
	Login             LoginConfig    `toml:"login"`
}

// SpotifyConfig contains the public PKCE client registration and endpoint roots.
type SpotifyConfig struct {
	ClientID          string   `toml:"client_id"`
	RedirectURI       string   `toml:"redirect_uri"`
	Scopes            []string `toml:"scopes"`
	APIBaseURL        string   `toml:"api_base_url"`
	AccountsBaseURL   string   `toml:"accounts_base_url"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// AuthURL returns the authorization endpoint.
func (s SpotifyConfig) AuthURL() string {
	return strings.TrimRight(s.AccountsBaseURL, "/") + "/authorize"
}

// TokenURL returns the token endpoint.
func (s SpotifyConfig) TokenURL() string {
	return strings.TrimRight(s.AccountsBaseURL, "/") + "/api/token"
}

// StoreConfig controls where credentials are kept.
type StoreConfig struct {
	UseKeyring     bool   `toml:"use_keyring"`
	KeyringService string `toml:"keyring_service"`
	Dir            string `toml:"dir"`
	LockTimeoutMS  int    `toml:"lock_timeout_ms"`
}

// LockTimeout returns the cross-process lock wait as a [time.Duration].
func (s StoreConfig) LockTimeout() time.Duration {
	return time.Duration(s.LockTimeoutMS) * time.Millisecond
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SlotsConfig describes the time-of-day split of shortcut slots.
type SlotsConfig struct {
	Enabled    bool  `toml:"enabled"`
	Count      int   `toml:"count"`
	Boundaries []int `toml:"boundaries"`
	Inclusive  bool  `toml:"inclusive"`
}

// LoginConfig controls the interactive login.
type LoginConfig struct {
	TimeoutSeconds int  `toml:"timeout_seconds"`
	OpenBrowser    bool `toml:"open_browser"`
}

// Timeout returns the login timeout as a [time.Duration].
func (l LoginConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults.
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
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the fields the auth flow and API client depend on.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" {
		return fmt.Errorf("%w: spotify.client_id is required", ErrInvalidConfig)
	}

	u, err := url.Parse(c.Spotify.RedirectURI)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("%w: spotify.redirect_uri %q is not an absolute URI", ErrInvalidConfig, c.Spotify.RedirectURI)
	}

	if _, err := url.ParseRequestURI(c.Spotify.APIBaseURL); err != nil {
		return fmt.Errorf("%w: spotify.api_base_url: %v", ErrInvalidConfig, err)
	}
	if _, err := url.ParseRequestURI(c.Spotify.AccountsBaseURL); err != nil {
		return fmt.Errorf("%w: spotify.accounts_base_url: %v", ErrInvalidConfig, err)
	}

	if c.Slots.Enabled {
		if c.Slots.Count <= 0 || len(c.Slots.Boundaries) != c.Slots.Count {
			return fmt.Errorf("%w: slots.boundaries must have slots.count entries", ErrInvalidConfig)
		}
		for i, b := range c.Slots.Boundaries {
			if b < 0 || b > 23 {
				return fmt.Errorf("%w: slot boundary %d out of range", ErrInvalidConfig, b)
			}
			if i > 0 && b <= c.Slots.Boundaries[i-1] {
				return fmt.Errorf("%w: slot boundaries must be ascending", ErrInvalidConfig)
			}
		}
	}

	return nil
}

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
