package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Remote       RemoteConfig    `mapstructure:"remote"`
	Terminal     TerminalConfig  `mapstructure:"terminal"`
	StateStorage StateStorage    `mapstructure:"state_storage"`
	Scheduler    SchedulerConfig `mapstructure:"scheduler"`
	Server       ServerConfig    `mapstructure:"server"`
	Logging      LoggingConfig   `mapstructure:"logging"`
}

type RemoteConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"` // Service credential for scheduled and CLI runs
	Timeout string `mapstructure:"timeout"`
}

func (r RemoteConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(r.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

type TerminalConfig struct {
	DeviceID string `mapstructure:"device_id"`
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the terminal timezone used for calendar-day comparisons.
func (t TerminalConfig) Location() (*time.Location, error) {
	if t.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(t.Timezone)
}

type StateStorage struct {
	Type      string `mapstructure:"type"` // mysql, sqlite, redis or memory
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Database  string `mapstructure:"database"`
	FilePath  string `mapstructure:"file_path"` // For SQLite
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
}

type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
	UserID   string `mapstructure:"user_id"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("remote.timeout", "10s")
	v.SetDefault("terminal.device_id", "terminal-1")
	v.SetDefault("terminal.timezone", "Local")
	v.SetDefault("state_storage.type", "sqlite")
	v.SetDefault("state_storage.file_path", "shift-state.db")
	v.SetDefault("state_storage.port", 3306)
	v.SetDefault("state_storage.redis_addr", "localhost:6379")
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "0 0 * * *")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// LoadConfig reads the YAML file at path (optional) and applies SHIFT_* env overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range []string{"remote.base_url", "remote.token", "server.jwt_secret", "scheduler.user_id",
		"state_storage.user", "state_storage.password", "state_storage.database", "state_storage.host"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return errors.New("remote.base_url is required")
	}
	if c.Terminal.DeviceID == "" {
		return errors.New("terminal.device_id is required")
	}
	if _, err := c.Terminal.Location(); err != nil {
		return fmt.Errorf("invalid terminal.timezone %q: %w", c.Terminal.Timezone, err)
	}
	switch c.StateStorage.Type {
	case "mysql", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown state_storage.type %q", c.StateStorage.Type)
	}
	return nil
}
