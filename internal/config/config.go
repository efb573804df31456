package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"

	BackendRedis    = "redis"
	BackendMemory   = "memory"
	BackendHTTP     = "http"
	BackendPostgres = "postgres"

	DefaultSessionTTL = 30 * time.Minute

	// lockTTLFactor is the minimum ratio of session.lock_ttl to business.timeout.
	lockTTLFactor = 3
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token         string `yaml:"token" envconfig:"BOT_TOKEN"`
	Mode          string `yaml:"mode" envconfig:"BOT_MODE"`
	WebhookURL    string `yaml:"webhook_url" envconfig:"WEBHOOK_URL"`
	WebhookSecret string `yaml:"webhook_secret" envconfig:"WEBHOOK_SECRET"`
	Workers       int    `yaml:"workers"`
	AdminIDs      IDList `yaml:"admin_ids" envconfig:"ADMIN_CHAT_IDS"`
	SupportURL    string `yaml:"support_url" envconfig:"SUPPORT_URL"`
	// SendRate caps outbound messages per second.
	SendRate float64 `yaml:"send_rate"`
	// RateLimit caps updates per user per minute; 0 disables it.
	RateLimit     int `yaml:"rate_limit"`
	NotifyWorkers int `yaml:"notify_workers"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int    `yaml:"port" envconfig:"HTTP_PORT"`
	AdminJWTSecret string `yaml:"admin_jwt_secret" envconfig:"ADMIN_JWT_SECRET"`
}

type SessionConfig struct {
	Backend string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	// TTL expires idle sessions; unset means 30m and 0 disables expiry.
	TTL           *time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
	LockTTL       time.Duration  `yaml:"lock_ttl"`
	SweepInterval time.Duration  `yaml:"sweep_interval"`
}

// IdleTTL returns the session expiry; 0 means sessions never expire.
func (s SessionConfig) IdleTTL() time.Duration {
	if s.TTL == nil || *s.TTL < 0 {
		return 0
	}
	return *s.TTL
}

type RedisConfig struct {
	URL      string `yaml:"url" envconfig:"REDIS_URL"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	// CacheTTL bounds cached user lookups.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type DatabaseConfig struct {
	URL     string `yaml:"url" envconfig:"DATABASE_URL"`
	Migrate bool   `yaml:"migrate"`
}

type BusinessConfig struct {
	Backend  string        `yaml:"backend" envconfig:"BUSINESS_BACKEND"`
	BaseURL  string        `yaml:"base_url" envconfig:"BUSINESS_API_URL"`
	APIToken string        `yaml:"api_token" envconfig:"BUSINESS_API_TOKEN"`
	Timeout  time.Duration `yaml:"timeout"`
}

type PlansConfig struct {
	Prices   map[string]int64 `yaml:"prices"`
	Currency string           `yaml:"currency" envconfig:"DEFAULT_CURRENCY"`
	Timezone string           `yaml:"timezone" envconfig:"DEFAULT_TIMEZONE"`
	// Payment instructions shown for each method.
	MobileMoney  string `yaml:"mobile_money"`
	BankTransfer string `yaml:"bank_transfer"`

	loc *time.Location
}

// Location returns the timezone plan periods are computed in.
func (p *PlansConfig) Location() *time.Location {
	if p.loc == nil {
		return time.UTC
	}
	return p.loc
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key" envconfig:"ENCRYPTION_KEY"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Session  SessionConfig  `yaml:"session"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Business BusinessConfig `yaml:"business"`
	Plans    PlansConfig    `yaml:"plans"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-" ignored:"true"`
}

// IDList is a list of chat ids; it accepts a YAML list or a comma-separated string.
type IDList []int64

// Decode implements envconfig.Decoder.
func (l *IDList) Decode(value string) error {
	ids, err := parseIDs(value)
	if err != nil {
		return err
	}
	*l = ids
	return nil
}

func (l *IDList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return l.Decode(node.Value)
	}
	var ids []int64
	if err := node.Decode(&ids); err != nil {
		return err
	}
	*l = ids
	return nil
}

func parseIDs(value string) (IDList, error) {
	var out IDList
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// Load reads the YAML file at path, loads an optional .env and overlays the environment.
// An empty path skips the file.
func Load(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	cfg.Runtime.Dev = dev
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies defaults and validates required fields.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}

	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.NotifyWorkers <= 0 {
		cfg.Bot.NotifyWorkers = 2
	}
	if cfg.Bot.SendRate <= 0 {
		cfg.Bot.SendRate = 25
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Session.TTL == nil {
		ttl := DefaultSessionTTL
		cfg.Session.TTL = &ttl
	}
	if cfg.Session.SweepInterval <= 0 {
		cfg.Session.SweepInterval = time.Minute
	}
	if cfg.Redis.CacheTTL <= 0 {
		cfg.Redis.CacheTTL = 5 * time.Minute
	}
	if cfg.Business.Timeout <= 0 {
		cfg.Business.Timeout = 10 * time.Second
	}
	if cfg.Session.LockTTL <= 0 {
		cfg.Session.LockTTL = max(30*time.Second, lockTTLFactor*cfg.Business.Timeout)
	}
	if cfg.Plans.Currency == "" {
		cfg.Plans.Currency = "XOF"
	}
	if cfg.Plans.Timezone == "" {
		cfg.Plans.Timezone = "Africa/Lome"
	}

	cfg.Bot.Mode = lowerOr(cfg.Bot.Mode, ModePolling)
	cfg.Session.Backend = lowerOr(cfg.Session.Backend, BackendRedis)
	cfg.Business.Backend = lowerOr(cfg.Business.Backend, BackendPostgres)

	// validation
	// dev mode without a token runs against a logging bot
	if cfg.Bot.Token == "" && !cfg.Runtime.Dev {
		return errors.New("bot.token is required")
	}
	switch cfg.Bot.Mode {
	case ModePolling:
	case ModeWebhook:
		if cfg.Bot.WebhookURL == "" {
			return errors.New("bot.webhook_url is required in webhook mode")
		}
	default:
		return fmt.Errorf("invalid bot.mode %q; allowed: polling, webhook", cfg.Bot.Mode)
	}
	// a handler chains several business calls while holding the session lock
	if cfg.Session.LockTTL < lockTTLFactor*cfg.Business.Timeout {
		return fmt.Errorf("session.lock_ttl (%s) must be at least %d times business.timeout (%s)",
			cfg.Session.LockTTL, lockTTLFactor, cfg.Business.Timeout)
	}
	switch cfg.Session.Backend {
	case BackendRedis:
		if cfg.Redis.URL == "" {
			return errors.New("redis.url is required for the redis session backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: redis, memory", cfg.Session.Backend)
	}
	switch cfg.Business.Backend {
	case BackendPostgres:
		if cfg.Database.URL == "" {
			return errors.New("database.url is required for the postgres business backend")
		}
	case BackendHTTP:
		if cfg.Business.BaseURL == "" {
			return errors.New("business.base_url is required for the http business backend")
		}
	default:
		return fmt.Errorf("invalid business.backend %q; allowed: http, postgres", cfg.Business.Backend)
	}
	for name, price := range cfg.Plans.Prices {
		if price < 0 {
			return fmt.Errorf("plans.prices.%s must be >= 0", name)
		}
	}

	loc, err := time.LoadLocation(cfg.Plans.Timezone)
	if err != nil {
		return fmt.Errorf("invalid plans.timezone %q: %w", cfg.Plans.Timezone, err)
	}
	cfg.Plans.loc = loc
	return nil
}

func lowerOr(v, def string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return def
	}
	return v
}
