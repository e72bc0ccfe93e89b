// Package config loads service configuration from environment variables with
// sensible defaults, so the service runs with zero configuration in local
// development.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the main configuration for the service.
type Config struct {
	Server      Server      `mapstructure:"server"`
	Certificate Certificate `mapstructure:"certificate"`
	Cache       Cache       `mapstructure:"cache"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"` // bytes
}

// Certificate holds issuance configuration.
type Certificate struct {
	OrgTag   string `mapstructure:"org_tag"`   // ORG segment of certificate numbers
	FontsDir string `mapstructure:"fonts_dir"` // optional directory of .ttf files
	MaxBatch int    `mapstructure:"max_batch"` // participants per batch request
}

// Cache holds image-cache configuration.
type Cache struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// bindings maps viper keys to the environment variables operators set.
var bindings = map[string]string{
	"server.port":           "PORT",
	"server.body_limit":     "BODY_LIMIT",
	"certificate.org_tag":   "ORG_TAG",
	"certificate.fonts_dir": "FONTS_DIR",
	"certificate.max_batch": "MAX_BATCH",
	"cache.ttl":             "CACHE_TTL",
}

// MustLoad builds the configuration from defaults plus environment overrides.
// It panics when an environment binding fails, which only happens on
// programmer error.
func MustLoad() *Config {
	v := viper.New()

	v.SetDefault("server.port", "3000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.body_limit", 50*1024*1024)
	v.SetDefault("certificate.org_tag", "AMSAT-ID")
	v.SetDefault("certificate.fonts_dir", "")
	v.SetDefault("certificate.max_batch", 500)
	v.SetDefault("cache.ttl", 10*time.Minute)

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			panic(err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}
