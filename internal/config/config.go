// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token       string `yaml:"token"`
	Username    string `yaml:"username"`
	Workers     int    `yaml:"workers"` // update handling workers
	PollTimeout int    `yaml:"poll_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	ServiceSecret  string        `yaml:"service_secret"` // HMAC key for service JWTs
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL            string        `yaml:"url"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	MutationLimit  int           `yaml:"mutation_limit"` // per user per window, 0 disables
	MutationWindow time.Duration `yaml:"mutation_window"`
}

type MusicConfig struct {
	BaseURL           string        `yaml:"base_url"`
	DefaultToken      string        `yaml:"default_token"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
	TransportRetries  int           `yaml:"transport_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

type PlaylistConfig struct {
	BaseLimit    int           `yaml:"base_limit"`
	RetryCeiling int           `yaml:"retry_ceiling"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	InviteTTL    time.Duration `yaml:"invite_ttl"` // 0 means invites never expire
}

type TierOffer struct {
	PriceStars   int64 `yaml:"price_stars"`
	DurationDays int   `yaml:"duration_days"` // 0 means no expiry
}

type TiersConfig struct {
	Tier5     TierOffer `yaml:"tier_5"`
	Tier10    TierOffer `yaml:"tier_10"`
	Unlimited TierOffer `yaml:"unlimited"`
}

type SchedulerConfig struct {
	ExpiryInterval   time.Duration `yaml:"expiry_interval"`
	StaleIntentAfter time.Duration `yaml:"stale_intent_after"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Music     MusicConfig     `yaml:"music"`
	Playlist  PlaylistConfig  `yaml:"playlist"`
	Tiers     TiersConfig     `yaml:"tiers"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadFromFlags reads -config and -dev and loads the file they name.
func LoadFromFlags() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return LoadConfig(configPath, dev)
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes yaml, applies env overrides and defaults, then validates.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// secrets may come from the environment
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.PollTimeout <= 0 {
		cfg.Bot.PollTimeout = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.Redis.MutationWindow <= 0 {
		cfg.Redis.MutationWindow = time.Minute
	}
	if cfg.Music.CallTimeout <= 0 {
		cfg.Music.CallTimeout = 10 * time.Second
	}
	if cfg.Music.TransportRetries < 0 {
		cfg.Music.TransportRetries = 0
	}
	if cfg.Music.RequestsPerSecond <= 0 {
		cfg.Music.RequestsPerSecond = 5
	}
	if cfg.Music.Burst <= 0 {
		cfg.Music.Burst = 10
	}
	if cfg.Playlist.BaseLimit == 0 {
		cfg.Playlist.BaseLimit = 2
	}
	if cfg.Playlist.RetryCeiling <= 0 {
		cfg.Playlist.RetryCeiling = 3
	}
	if cfg.Playlist.RetryBackoff <= 0 {
		cfg.Playlist.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.Tiers.Tier5.PriceStars == 0 {
		cfg.Tiers.Tier5.PriceStars = 100
	}
	if cfg.Tiers.Tier10.PriceStars == 0 {
		cfg.Tiers.Tier10.PriceStars = 200
	}
	if cfg.Tiers.Unlimited.PriceStars == 0 {
		cfg.Tiers.Unlimited.PriceStars = 500
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = 10 * time.Minute
	}
	if cfg.Scheduler.StaleIntentAfter <= 0 {
		cfg.Scheduler.StaleIntentAfter = 24 * time.Hour
	}
}

func (cfg *Config) validate() error {
	if cfg.Bot.Token == "" {
		return errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Music.BaseURL == "" {
		return errors.New("music.base_url is required")
	}
	if cfg.Playlist.BaseLimit < 0 {
		return errors.New("playlist.base_limit must not be negative")
	}
	if n := len(cfg.Security.EncryptionKey); n != 0 && n != 32 {
		return errors.New("security.encryption_key must be 32 bytes")
	}
	if cfg.HTTP.ServiceSecret != "" && len(cfg.HTTP.ServiceSecret) < 16 {
		return errors.New("http.service_secret must be at least 16 bytes")
	}
	for name, o := range map[string]TierOffer{"tier_5": cfg.Tiers.Tier5, "tier_10": cfg.Tiers.Tier10, "unlimited": cfg.Tiers.Unlimited} {
		if o.PriceStars < 0 || o.DurationDays < 0 {
			return fmt.Errorf("tiers.%s: price and duration must not be negative", name)
		}
	}
	return nil
}
