// Package config loads daemon settings from an optional .env file and LOGQ_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is stripped from environment variables; the rest maps to a dotted key
// (LOGQ_HTTP_ADDR -> http.addr).
const EnvPrefix = "LOGQ_"

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	TCP       TCPConfig       `mapstructure:"tcp"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// TCPConfig configures the line protocol listener. An empty Addr disables it.
type TCPConfig struct {
	Addr string `mapstructure:"addr"`
	TLS  bool   `mapstructure:"tls"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"` // file, memory, sqlite
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RateLimitConfig limits POST /logs per client IP. PerMinute 0 disables it.
type RateLimitConfig struct {
	PerMinute int `mapstructure:"perminute"`
	Burst     int `mapstructure:"burst"`
}

type CORSConfig struct {
	Origin string `mapstructure:"origin"`
}

// envAliases maps environment suffixes whose underscores are part of the key name.
var envAliases = map[string]string{
	"RATELIMIT_PER_MINUTE": "ratelimit.perminute",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":3001")
	v.SetDefault("tcp.addr", "")
	v.SetDefault("tcp.tls", true)
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", "./data/logs.json")
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "json")
	v.SetDefault("ratelimit.perminute", 0)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("cors.origin", "*")
}

// Load reads .env (if present) and the environment into a Config.
func Load() (Config, error) {
	return LoadFrom(".env", os.Environ())
}

// LoadFrom is Load with an explicit .env path and environment, for tests.
func LoadFrom(envFile string, environ []string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	// 1. Load from .env file (if exists)
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("failed to read %s: %w", envFile, err)
			}
			// .env keys arrive flat (logq_http_addr); fold them like environment variables.
			for _, key := range v.AllKeys() {
				upper := strings.ToUpper(key)
				if strings.HasPrefix(upper, EnvPrefix) {
					v.Set(envKey(strings.TrimPrefix(upper, EnvPrefix)), v.GetString(key))
				}
			}
		}
	}

	// 2. Load from environment variables
	for _, envStr := range environ {
		key, value, ok := strings.Cut(envStr, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		v.Set(envKey(strings.TrimPrefix(key, EnvPrefix)), value)
	}

	// 3. Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey turns HTTP_ADDR into http.addr.
func envKey(suffix string) string {
	if alias, ok := envAliases[suffix]; ok {
		return alias
	}
	return strings.ToLower(strings.ReplaceAll(suffix, "_", "."))
}

// Validate rejects settings the daemon cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case "file", "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if c.Store.Backend != "memory" && c.Store.Path == "" {
		errs = append(errs, errors.New("store.path: required for file and sqlite backends"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.RateLimit.PerMinute < 0 {
		errs = append(errs, errors.New("ratelimit.perminute: must not be negative"))
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("ratelimit.burst: must not be negative"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr: required"))
	}
	return errors.Join(errs...)
}
