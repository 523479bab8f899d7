package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "MANGAMIRROR_"

type Config struct {
	Addr        string `yaml:"addr" env:"ADDR"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`
	Debug       bool   `yaml:"debug" env:"DEBUG"`
	LogJSON     bool   `yaml:"log_json" env:"LOG_JSON"`

	AdminTokens     []string `yaml:"admin_tokens" env:"ADMIN_TOKENS"`
	AllowOpenAdmin  bool     `yaml:"allow_open_admin" env:"ALLOW_OPEN_ADMIN"`
	AllowedDomains  []string `yaml:"allowed_domains" env:"ALLOWED_DOMAINS"`
	ScrapePerMinute int      `yaml:"scrape_per_minute" env:"SCRAPE_PER_MINUTE"`

	Workers       int           `yaml:"workers" env:"WORKERS"`
	PageTimeout   time.Duration `yaml:"page_timeout" env:"PAGE_TIMEOUT"`
	LockTTL       time.Duration `yaml:"lock_ttl" env:"LOCK_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	SweepLimit    int           `yaml:"sweep_limit" env:"SWEEP_LIMIT"`

	Fetch   FetchConfig   `yaml:"fetch" envPrefix:"FETCH_"`
	Storage StorageConfig `yaml:"storage" envPrefix:"S3_"`
}

type FetchConfig struct {
	MinDelay         time.Duration `yaml:"min_delay" env:"MIN_DELAY"`
	MaxRetries       int           `yaml:"max_retries" env:"MAX_RETRIES"`
	Timeout          time.Duration `yaml:"timeout" env:"TIMEOUT"`
	HostPerMinute    int           `yaml:"host_per_minute" env:"HOST_PER_MINUTE"`
	UserAgent        string        `yaml:"user_agent" env:"USER_AGENT"`
	Cookie           string        `yaml:"cookie" env:"COOKIE"`
	CookieFile       string        `yaml:"cookie_file" env:"COOKIE_FILE"`
	CloudflareBypass bool          `yaml:"cloudflare_bypass" env:"CLOUDFLARE_BYPASS"`
}

type StorageConfig struct {
	Endpoint   string `yaml:"endpoint" env:"ENDPOINT"`
	Region     string `yaml:"region" env:"REGION"`
	Bucket     string `yaml:"bucket" env:"BUCKET"`
	AccessKey  string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey  string `yaml:"secret_key" env:"SECRET_KEY"`
	UseSSL     bool   `yaml:"use_ssl" env:"USE_SSL"`
	PublicBase string `yaml:"public_base" env:"PUBLIC_BASE"`
}

// Options are command line overrides. Zero values leave the loaded config
// untouched.
type Options struct {
	IgnoreConfig   bool
	EnvFile        string
	Debug          bool
	Addr           string
	DatabaseURL    string
	Workers        int
	SweepLimit     int
	AllowOpenAdmin bool
}

func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		ScrapePerMinute: 30,
		AllowedDomains: []string{
			"manhwalist.com",
			"shinigami.sh",
			"komikcast.lol",
			"komiku.org",
			"komikindo.ch",
			"mangadex.org",
		},
		Workers:       4,
		PageTimeout:   30 * time.Second,
		LockTTL:       5 * time.Minute,
		SweepInterval: time.Hour,
		SweepLimit:    500,
		Fetch: FetchConfig{
			MinDelay:   2 * time.Second,
			MaxRetries: 3,
			Timeout:    30 * time.Second,
		},
		Storage: StorageConfig{
			Region: "auto",
			UseSSL: true,
		},
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// holds database and storage credentials
	return os.WriteFile(path, data, 0600)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadMerged builds the effective config: defaults, then the active YAML
// profile, then MANGAMIRROR_* variables (a .env file only fills variables
// that are unset), then opts. The second return value describes where the
// file layer came from.
func LoadMerged(opts Options) (*Config, string, error) {
	cfg, used, err := loadFileLayer(opts.IgnoreConfig)
	if err != nil {
		return nil, "", err
	}

	if err := loadDotEnv(opts.EnvFile); err != nil {
		return nil, "", err
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, "", fmt.Errorf("parse environment: %w", err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, used, nil
}

func loadFileLayer(ignore bool) (*Config, string, error) {
	if ignore {
		return DefaultConfig(), "(ignored config)", nil
	}

	activePath, err := ActiveConfigPath()
	if errors.Is(err, ErrNoConfig) || activePath == "" {
		return DefaultConfig(), "(default config in memory)\nRun `mangamirror config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	return cfg, activePath, nil
}

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("load %s: %w", path, err)
}

func mergeConfig(c *Config, o Options) {
	if o.Debug {
		c.Debug = true
	}
	if o.Addr != "" {
		c.Addr = o.Addr
	}
	if o.DatabaseURL != "" {
		c.DatabaseURL = o.DatabaseURL
	}
	if o.Workers != 0 {
		c.Workers = o.Workers
	}
	if o.SweepLimit != 0 {
		c.SweepLimit = o.SweepLimit
	}
	if o.AllowOpenAdmin {
		c.AllowOpenAdmin = true
	}
}

func normalizeDefaults(c *Config) {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.ScrapePerMinute <= 0 {
		c.ScrapePerMinute = def.ScrapePerMinute
	}
	if c.SweepLimit <= 0 {
		c.SweepLimit = def.SweepLimit
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	c.AdminTokens = compact(c.AdminTokens)
	c.AllowedDomains = compact(c.AllowedDomains)
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database_url is required (or set " + EnvPrefix + "DATABASE_URL)")
	}
	if c.Storage.Bucket == "" || c.Storage.Endpoint == "" {
		return errors.New("storage.endpoint and storage.bucket are required")
	}

	return nil
}

var ErrNoAdminTokens = errors.New("admin_tokens is empty (set " + EnvPrefix + "ADMIN_TOKENS, or allow_open_admin to serve admin endpoints unauthenticated)")

// ValidateServe adds the checks that only matter when the HTTP API runs.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.AdminTokens) == 0 && !c.AllowOpenAdmin {
		return ErrNoAdminTokens
	}

	return nil
}

func (c *Config) Print() {
	fmt.Printf(" -addr: %s\n", c.Addr)
	if c.DatabaseURL != "" {
		fmt.Printf(" -database_url: %s\n", redactURL(c.DatabaseURL))
	}
	if c.RedisURL != "" {
		fmt.Printf(" -redis_url: %s\n", redactURL(c.RedisURL))
	}
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	fmt.Printf(" -admin_tokens: %d configured\n", len(c.AdminTokens))
	if c.AllowOpenAdmin {
		fmt.Printf(" -allow_open_admin: %t\n", c.AllowOpenAdmin)
	}
	if len(c.AllowedDomains) > 0 {
		fmt.Printf(" -allowed_domains: %s\n", strings.Join(c.AllowedDomains, ", "))
	}
	fmt.Printf(" -workers: %d\n", c.Workers)
	fmt.Printf(" -sweep: every %s, %d rows\n", c.SweepInterval, c.SweepLimit)
	fmt.Printf(" -fetch: delay %s, %d retries, timeout %s\n", c.Fetch.MinDelay, c.Fetch.MaxRetries, c.Fetch.Timeout)
	if c.Fetch.CloudflareBypass {
		fmt.Printf(" -cloudflare_bypass: %t\n", c.Fetch.CloudflareBypass)
	}
	if c.Storage.Bucket != "" {
		fmt.Printf(" -storage: %s/%s\n", c.Storage.Endpoint, c.Storage.Bucket)
	}
	if c.Storage.PublicBase != "" {
		fmt.Printf(" -public_base: %s\n", c.Storage.PublicBase)
	}
}

// redactURL hides the password of a connection string.
func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	creds := raw[scheme+3 : at]
	if user, _, ok := strings.Cut(creds, ":"); ok {
		return raw[:scheme+3] + user + ":***" + raw[at:]
	}

	return raw
}
