// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/ivoox-scraper/internal/jobs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Redis   RedisConfig   `mapstructure:"redis"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScraperConfig governs the scraping engine and its HTTP session.
type ScraperConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
}

// CacheConfig sets the TTL classes for cached results and registrations.
type CacheConfig struct {
	SearchTTLHours    int `mapstructure:"search_ttl_hours"`
	ListingTTLHours   int `mapstructure:"listing_ttl_hours"`
	PendingTTLSeconds int `mapstructure:"pending_ttl_seconds"`
	JobTTLMinutes     int `mapstructure:"job_ttl_minutes"`
}

// RedisConfig holds Redis connection settings. An empty address selects the
// in-memory store.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory favorites store.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MinOpenConns int    `mapstructure:"min_open_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// WorkerConfig governs the scrape worker pool.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueDepth  int `mapstructure:"queue_depth"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IVOOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.base_url", "http://www.ivoox.com")
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("scraper.timeout_seconds", 10)
	v.SetDefault("scraper.requests_per_sec", 0)
	v.SetDefault("cache.search_ttl_hours", 720)
	v.SetDefault("cache.listing_ttl_hours", 24)
	v.SetDefault("cache.pending_ttl_seconds", 600)
	v.SetDefault("cache.job_ttl_minutes", 60)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_depth", 64)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper.base_url must be set")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Cache.PendingTTLSeconds <= 0 {
		return fmt.Errorf("cache.pending_ttl_seconds must be > 0")
	}
	return nil
}

// FetchTimeout converts the scraper timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// TTLPolicy converts the cache section into the job TTL policy.
func (c Config) TTLPolicy() jobs.TTLPolicy {
	return jobs.TTLPolicy{
		Search:    time.Duration(c.Cache.SearchTTLHours) * time.Hour,
		Listing:   time.Duration(c.Cache.ListingTTLHours) * time.Hour,
		Pending:   time.Duration(c.Cache.PendingTTLSeconds) * time.Second,
		JobRecord: time.Duration(c.Cache.JobTTLMinutes) * time.Minute,
	}
}
