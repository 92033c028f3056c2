package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"nuclight.org/crossposter/internal/approval"
)

const (
	PlatformTwitter   = "twitter"
	PlatformBluesky   = "bluesky"
	PlatformFarcaster = "farcaster"
)

const (
	DefaultPostTag        = "#topost"
	DefaultSweepInterval  = 5 * time.Minute
	DefaultPublishTimeout = 60 * time.Second
)

type Twitter struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

type Bluesky struct {
	Identifier string
	Password   string
	PDS        string
}

type Farcaster struct {
	Token   string
	BaseURL string
}

type Config struct {
	TelegramToken  string
	PostTag        string
	Tracker        approval.Config
	SweepInterval  time.Duration
	PublishTimeout time.Duration
	Platforms      []string

	Twitter   Twitter
	Bluesky   Bluesky
	Farcaster Farcaster

	DBPath      string
	MetricsAddr string
	SentryDSN   string
	LogLevel    slog.Level
}

// Enabled reports whether platform is listed in PLATFORMS.
func (c *Config) Enabled(platform string) bool {
	for _, p := range c.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	token := os.Getenv("TELEGRAM_BOT_API_KEY")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_API_KEY is required")
	}

	cfg := &Config{
		TelegramToken: token,
		PostTag:       envOr("POST_TAG", DefaultPostTag),
		DBPath:        os.Getenv("DB_PATH"),
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Twitter: Twitter{
			APIKey:       os.Getenv("TWITTER_API_KEY"),
			APISecret:    os.Getenv("TWITTER_API_SECRET"),
			AccessToken:  os.Getenv("TWITTER_ACCESS_TOKEN"),
			AccessSecret: os.Getenv("TWITTER_ACCESS_SECRET"),
		},
		Bluesky: Bluesky{
			Identifier: os.Getenv("BLUESKY_IDENTIFIER"),
			Password:   os.Getenv("BLUESKY_PASSWORD"),
			PDS:        os.Getenv("BLUESKY_PDS"),
		},
		Farcaster: Farcaster{
			Token:   os.Getenv("FARCASTER_TOKEN"),
			BaseURL: os.Getenv("FARCASTER_API"),
		},
	}

	var err error
	tracker := approval.DefaultConfig()
	if tracker.RequiredReactions, err = envInt("REQUIRED_REACTIONS", tracker.RequiredReactions); err != nil {
		return nil, err
	}
	if tracker.RequiredReactions < 1 {
		return nil, fmt.Errorf("REQUIRED_REACTIONS must be at least 1")
	}
	if tracker.ExpirationWindow, err = envDuration("EXPIRATION_WINDOW", tracker.ExpirationWindow); err != nil {
		return nil, err
	}
	if tracker.Retention, err = envDuration("RETENTION", tracker.ExpirationWindow); err != nil {
		return nil, err
	}
	cfg.Tracker = tracker

	if cfg.SweepInterval, err = envDuration("SWEEP_INTERVAL", DefaultSweepInterval); err != nil {
		return nil, err
	}
	if cfg.PublishTimeout, err = envDuration("PUBLISH_TIMEOUT", DefaultPublishTimeout); err != nil {
		return nil, err
	}

	if cfg.Platforms, err = parsePlatforms(os.Getenv("PLATFORMS")); err != nil {
		return nil, err
	}
	if err := cfg.validateCredentials(); err != nil {
		return nil, err
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) validateCredentials() error {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if c.Enabled(PlatformTwitter) {
		require("TWITTER_API_KEY", c.Twitter.APIKey)
		require("TWITTER_API_SECRET", c.Twitter.APISecret)
		require("TWITTER_ACCESS_TOKEN", c.Twitter.AccessToken)
		require("TWITTER_ACCESS_SECRET", c.Twitter.AccessSecret)
	}
	if c.Enabled(PlatformBluesky) {
		require("BLUESKY_IDENTIFIER", c.Bluesky.Identifier)
		require("BLUESKY_PASSWORD", c.Bluesky.Password)
	}
	if c.Enabled(PlatformFarcaster) {
		require("FARCASTER_TOKEN", c.Farcaster.Token)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials for enabled platforms: %s", strings.Join(missing, ", "))
	}
	return nil
}

func parsePlatforms(raw string) ([]string, error) {
	var platforms []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		switch p {
		case PlatformTwitter, PlatformBluesky, PlatformFarcaster:
		default:
			return nil, fmt.Errorf("PLATFORMS: unknown platform %q", p)
		}
		seen[p] = true
		platforms = append(platforms, p)
	}
	return platforms, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
