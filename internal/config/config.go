package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/umar/forum-livechat/internal/rooms"
)

const envPrefix = "FORUMCHAT"

// Config is filled from defaults, an optional config file, FORUMCHAT_* env
// vars and command-line flags, lowest to highest precedence.
type Config struct {
	Port         string `mapstructure:"port"`
	CORSOrigin   string `mapstructure:"cors_origin"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	RequireToken bool   `mapstructure:"require_token"`

	RoomTTL   time.Duration `mapstructure:"room_ttl"`
	SweepSpec string        `mapstructure:"sweep_spec"`

	EventsPerSecond float64 `mapstructure:"events_per_second"`
	EventBurst      int     `mapstructure:"event_burst"`
	SendBuffer      int     `mapstructure:"send_buffer"`

	// Optional sinks; empty disables them.
	RedisURL    string `mapstructure:"redis_url"`
	DatabaseURL string `mapstructure:"database_url"`

	LogLevel string `mapstructure:"log_level"`
}

var defaults = map[string]interface{}{
	"port":              "8080",
	"cors_origin":       "http://localhost:5173",
	"jwt_secret":        "dev-secret-change-me",
	"require_token":     false,
	"room_ttl":          rooms.DefaultTTL,
	"sweep_spec":        "@every 1s",
	"events_per_second": 5.0,
	"event_burst":       10,
	"send_buffer":       256,
	"redis_url":         "",
	"database_url":      "",
	"log_level":         "info",
}

// bareEnv lists the unprefixed variable names deployments already use.
var bareEnv = map[string]string{
	"port":         "PORT",
	"cors_origin":  "CORS_ORIGIN",
	"jwt_secret":   "JWT_SECRET",
	"redis_url":    "REDIS_URL",
	"database_url": "DATABASE_URL",
}

// WordSepNormalizeFunc lets flags use - while config keys use _.
func WordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "-", "_"))
}

// AddFlags registers one flag per config key plus --config.
func AddFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(WordSepNormalizeFunc)
	fs.StringP("config", "c", "", "path to a config file (yaml, toml or json)")
	fs.StringP("port", "p", "8080", "HTTP listen port")
	fs.String("cors-origin", "http://localhost:5173", "allowed CORS origin")
	fs.String("jwt-secret", "dev-secret-change-me", "HS256 secret for identity tokens")
	fs.Bool("require-token", false, "refuse websocket connections without a token")
	fs.Duration("room-ttl", rooms.DefaultTTL, "how long a room stays open")
	fs.String("sweep-spec", "@every 1s", "cron spec for the expiry sweep")
	fs.Float64("events-per-second", 5, "inbound events per connection per second, 0 disables")
	fs.Int("event-burst", 10, "burst size for the per-connection event limit")
	fs.Int("send-buffer", 256, "outbound queue length per connection")
	fs.String("redis-url", "", "Redis URL for the presence mirror")
	fs.String("database-url", "", "Postgres URL for the activity journal")
	fs.String("log-level", "info", "debug, info, warn or error")
}

// Load resolves the configuration. fs must already be parsed.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, bare := range bareEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(key), bare); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", bare, err)
		}
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
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
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.RoomTTL <= 0 {
		errs = append(errs, errors.New("room_ttl must be positive"))
	}
	if c.SweepSpec == "" {
		errs = append(errs, errors.New("sweep_spec is required"))
	}
	if c.EventsPerSecond < 0 {
		errs = append(errs, errors.New("events_per_second must not be negative"))
	}
	if c.EventsPerSecond > 0 && c.EventBurst < 1 {
		errs = append(errs, errors.New("event_burst must be at least 1"))
	}
	if c.SendBuffer < 1 {
		errs = append(errs, errors.New("send_buffer must be at least 1"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
}
