// ABOUTME: Bloom configuration loaded from a YAML file and BLOOM_* environment variables.
// ABOUTME: Provides defaulting accessors and factories for storage, the API client and event publishing.

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/harperreed/bloom/internal/events"
	"github.com/harperreed/bloom/internal/fitbit"
	"github.com/harperreed/bloom/internal/jobs"
	"github.com/harperreed/bloom/internal/storage"
)

// EnvPrefix prefixes environment overrides, e.g. BLOOM_STORAGE_BACKEND.
const EnvPrefix = "BLOOM"

// DefaultTopic carries both job triggers and the follow-up events jobs publish,
// so a worker on the defaults runs the whole chain.
const DefaultTopic = "bloom.events"

// StorageConfig selects and locates the store.
type StorageConfig struct {
	// Backend is "sqlite" (default) or "postgres".
	Backend string `mapstructure:"backend" yaml:"backend,omitempty"`
	// SQLitePath supports ~ expansion. Defaults to the XDG data directory.
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path,omitempty"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn,omitempty"`
}

// FitbitConfig configures the wearable API client.
type FitbitConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// EventsConfig configures the Kafka bus. With no brokers, events are only logged.
type EventsConfig struct {
	Brokers       []string `mapstructure:"brokers" yaml:"brokers,omitempty"`
	InboundTopic  string   `mapstructure:"inbound_topic" yaml:"inbound_topic,omitempty"`
	OutboundTopic string   `mapstructure:"outbound_topic" yaml:"outbound_topic,omitempty"`
	GroupID       string   `mapstructure:"group_id" yaml:"group_id,omitempty"`
	Acks          int      `mapstructure:"acks" yaml:"acks,omitempty"`
}

// JobsConfig tunes batch runs.
type JobsConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency,omitempty"`
}

// HTTPConfig configures the trigger API.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level,omitempty"`
	Format string `mapstructure:"format" yaml:"format,omitempty"`
}

// Config stores bloom configuration.
type Config struct {
	Storage  StorageConfig `mapstructure:"storage" yaml:"storage"`
	Timezone string        `mapstructure:"timezone" yaml:"timezone,omitempty"`
	Fitbit   FitbitConfig  `mapstructure:"fitbit" yaml:"fitbit"`
	Events   EventsConfig  `mapstructure:"events" yaml:"events"`
	Jobs     JobsConfig    `mapstructure:"jobs" yaml:"jobs"`
	HTTP     HTTPConfig    `mapstructure:"http" yaml:"http"`
	Log      LogConfig     `mapstructure:"log" yaml:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.sqlite_path", "")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("timezone", jobs.DefaultTimezone)
	v.SetDefault("fitbit.base_url", fitbit.DefaultBaseURL)
	v.SetDefault("fitbit.timeout", 30*time.Second)
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.inbound_topic", DefaultTopic)
	v.SetDefault("events.outbound_topic", DefaultTopic)
	v.SetDefault("events.group_id", "bloom-worker")
	v.SetDefault("events.acks", -1)
	v.SetDefault("jobs.concurrency", 4)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Storage.Backend == "" {
		return "sqlite"
	}
	return c.Storage.Backend
}

// GetSQLitePath returns the SQLite file with ~ expanded, defaulting to the XDG data directory.
func (c *Config) GetSQLitePath() string {
	if c.Storage.SQLitePath == "" {
		return storage.DefaultDBPath()
	}
	return ExpandPath(c.Storage.SQLitePath)
}

// GetConcurrency returns the per-user fan-out limit, at least 1.
func (c *Config) GetConcurrency() int {
	if c.Jobs.Concurrency < 1 {
		return 1
	}
	return c.Jobs.Concurrency
}

// Location returns the job time zone.
func (c *Config) Location() *time.Location {
	tz := c.Timezone
	if tz == "" {
		tz = jobs.DefaultTimezone
	}
	return jobs.LoadLocation(tz)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStorage creates a Store implementation based on the configured backend.
func (c *Config) OpenStorage() (storage.Store, error) {
	switch backend := c.GetBackend(); backend {
	case "sqlite":
		return storage.Open(c.GetSQLitePath())
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend requires storage.postgres_dsn")
		}
		return storage.OpenPostgres(c.Storage.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}

// FitbitClient creates the wearable API client.
func (c *Config) FitbitClient() *fitbit.Client {
	return fitbit.NewClient(c.Fitbit.BaseURL, c.Fitbit.Timeout)
}

// NewPublisher creates the outbound publisher: Kafka when brokers are set, otherwise a logger.
func (c *Config) NewPublisher(log *slog.Logger) (events.Publisher, error) {
	if len(c.Events.Brokers) == 0 {
		return events.NewLogPublisher(log), nil
	}
	return events.NewKafkaPublisher(events.KafkaConfig{
		Brokers: c.Events.Brokers,
		Topic:   c.Events.OutboundTopic,
		Acks:    c.Events.Acks,
	}, log)
}

// NewConsumer creates the inbound consumer. Brokers are required.
func (c *Config) NewConsumer(log *slog.Logger) (*events.Consumer, error) {
	return events.NewConsumer(events.ConsumerConfig{
		Brokers: c.Events.Brokers,
		Topic:   c.Events.InboundTopic,
		GroupID: c.Events.GroupID,
	}, log)
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "bloom", "config.yaml")
}

// Load reads config from path (GetConfigPath when empty), then applies BLOOM_* overrides.
// A missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetConfigPath()
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Save writes config to the default path.
func (c *Config) Save() error {
	path := GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
