package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Bot         BotConfig         `toml:"bot"`
	Chat        ChatConfig        `toml:"chat"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the most recent OAuth2 token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenExpiry  time.Time `toml:"token_expiry"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings shared by the OAuth callback and the bot endpoints.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// BotConfig controls the chat bot: which playlist it manages and how the confirmation loop is paced.
type BotConfig struct {
	Name         string        `toml:"name"`
	PlaylistID   string        `toml:"playlist_id"`
	Room         string        `toml:"room"`
	Confirm      bool          `toml:"confirm"`
	PollInterval time.Duration `toml:"poll_interval"`
	StaleAfter   time.Duration `toml:"stale_after"`
	MessageTTL   time.Duration `toml:"message_ttl"`
	LinkTTL      time.Duration `toml:"link_ttl"`
	MaxUptime    time.Duration `toml:"max_uptime"`
}

// ChatConfig contains webhook transport settings.
type ChatConfig struct {
	WebhookURL string `toml:"webhook_url"`
	Secret     string `toml:"secret"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Map returns the credentials in the shape expected by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	m := map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
	}
	if !s.TokenExpiry.IsZero() {
		m["token_expiry"] = s.TokenExpiry.Format(time.RFC3339)
	}
	return m
}

// Token rebuilds the stored [oauth2.Token], or nil when no token has been saved.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.TokenExpiry,
	}
}

// Update stores a freshly exchanged token.
//
// Spotify omits the refresh token on some refreshes, so an empty one keeps the previous value.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidArgument)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenExpiry = token.Expiry
	return nil
}

// Validate checks the settings the bot cannot run without.
func (c *Config) Validate() error {
	if c.Bot.PlaylistID == "" {
		return fmt.Errorf("%w: bot.playlist_id is required", ErrInvalidConfig)
	}
	if c.Bot.PollInterval <= 0 {
		return fmt.Errorf("%w: bot.poll_interval must be positive", ErrInvalidConfig)
	}
	if c.Bot.StaleAfter <= 0 {
		return fmt.Errorf("%w: bot.stale_after must be positive", ErrInvalidConfig)
	}
	if c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret", ErrMissingCredentials)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
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

// SaveConfig writes the configuration back to path, e.g. after an OAuth token refresh.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
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

// LoadEnv loads a .env file (if present) and applies environment overrides on top of the config.
//
// HUBOT_NAME is read when BOT_NAME is unset.
func LoadEnv(config *Config, files ...string) {
	_ = godotenv.Load(files...)
	ApplyEnv(config, os.Getenv)
}

// ApplyEnv overrides config values with non-empty environment variables read through getenv.
func ApplyEnv(config *Config, getenv func(string) string) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	str(&config.Bot.PlaylistID, "SPOTIFY_PLAYLIST_ID")
	str(&config.Bot.Name, "BOT_NAME", "HUBOT_NAME")
	str(&config.Bot.Room, "BOT_ROOM")
	str(&config.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	str(&config.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	str(&config.Credentials.Spotify.RefreshToken, "SPOTIFY_REFRESH_TOKEN")
	str(&config.Chat.WebhookURL, "CHAT_WEBHOOK_URL")
	str(&config.Chat.Secret, "CHAT_WEBHOOK_SECRET")
	str(&config.Database.Path, "TRACKBOT_DATABASE")
	str(&config.Log.Level, "TRACKBOT_LOG_LEVEL")

	if v := strings.TrimSpace(getenv("TRACKBOT_CONFIRM")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Bot.Confirm = b
		}
	}
}
