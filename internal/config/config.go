package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string `mapstructure:"server_port"`

	StoreDriver string `mapstructure:"store_driver"`
	DBHost      string `mapstructure:"db_host"`
	DBPort      string `mapstructure:"db_port"`
	DBUser      string `mapstructure:"db_user"`
	DBPassword  string `mapstructure:"db_password"`
	DBName      string `mapstructure:"db_name"`
	DBSSLMode   string `mapstructure:"db_sslmode"`
	DBMaxConns  int    `mapstructure:"db_max_conns"`

	RedisURL       string `mapstructure:"redis_url"`
	RealtimeFanout string `mapstructure:"realtime_fanout"`
	WSSendBuffer   int    `mapstructure:"ws_send_buffer"`

	JWTSecret string `mapstructure:"jwt_secret"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogDir        string `mapstructure:"log_dir"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`

	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	CORSOrigins []string `mapstructure:"cors_origins"`
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	FanoutLocal = "local"
	FanoutRedis = "redis"
)

var defaults = map[string]any{
	"server_port":      "8080",
	"store_driver":     StoreDriverPostgres,
	"db_host":          "localhost",
	"db_port":          "5432",
	"db_user":          "chorus",
	"db_password":      "chorus_dev_password",
	"db_name":          "chorus",
	"db_sslmode":       "disable",
	"db_max_conns":     25,
	"redis_url":        "localhost:6379",
	"realtime_fanout":  FanoutLocal,
	"ws_send_buffer":   256,
	"jwt_secret":       "dev-secret-change-me",
	"log_level":        "info",
	"log_format":       "text",
	"log_dir":          "",
	"log_max_size_mb":  10,
	"log_max_backups":  30,
	"log_max_age_days": 90,
	"rate_limit_rps":   5.0,
	"rate_limit_burst": 10,
	"cors_origins":     []string{"*"},
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. Environment keys are the
// upper-case field tags, e.g. SERVER_PORT or JWT_SECRET.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown store_driver %q", c.StoreDriver)
	}
	switch c.RealtimeFanout {
	case FanoutLocal, FanoutRedis:
	default:
		return fmt.Errorf("config: unknown realtime_fanout %q", c.RealtimeFanout)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: jwt_secret is required")
	}
	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("config: ws_send_buffer must be positive")
	}
	return nil
}

// DatabaseURL builds the postgres connection string.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
