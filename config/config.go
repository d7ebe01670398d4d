// Package config reads settings from the environment, optionally seeded
// from a .env file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"attendance-server-go/roster"
)

const (
	StorageRedis = "redis"
	StorageFile  = "file"
)

// Config holds runtime settings
type Config struct {
	Addr          string
	Storage       string // "redis" or "file"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StorageKey    string
	DataDir       string
	Brand         string
	SeedDemo      bool
	GinMode       string
	Rules         roster.Rules
}

// New returns a viper instance with every default registered
func New() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	defaults := roster.DefaultRules()
	v.SetDefault("addr", ":8080")
	v.SetDefault("storage", StorageRedis)
	v.SetDefault("redis_addr", "127.0.0.1:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 8)
	v.SetDefault("storage_key", "kb_attendance_v1")
	v.SetDefault("data_dir", "data")
	v.SetDefault("brand", "Masaru")
	v.SetDefault("seed_demo", false)
	v.SetDefault("gin_mode", "debug")
	v.SetDefault("default_fee", defaults.DefaultFee)
	v.SetDefault("absence_penalty", defaults.AbsencePenalty)
	v.SetDefault("sessions_per_week", defaults.SessionsPerWeek)
	v.SetDefault("date_layout", defaults.DateLayout)

	v.AutomaticEnv()
	return v
}

// Load reads envFile (ignored when missing) into the environment and builds a Config
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("config.godotenv(%s): %w", envFile, err)
			}
			log.Printf("Loaded environment from %s", envFile)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config.os.Stat(%s): %w", envFile, err)
		}
	}
	return FromViper(New())
}

// FromViper validates and converts v
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Addr:          v.GetString("addr"),
		Storage:       v.GetString("storage"),
		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		StorageKey:    v.GetString("storage_key"),
		DataDir:       v.GetString("data_dir"),
		Brand:         v.GetString("brand"),
		SeedDemo:      v.GetBool("seed_demo"),
		GinMode:       v.GetString("gin_mode"),
		Rules: roster.Rules{
			DefaultFee:      v.GetInt("default_fee"),
			AbsencePenalty:  v.GetInt("absence_penalty"),
			SessionsPerWeek: v.GetInt("sessions_per_week"),
			DateLayout:      v.GetString("date_layout"),
		},
	}

	switch cfg.Storage {
	case StorageRedis, StorageFile:
	default:
		return nil, fmt.Errorf("unknown storage %q, want %q or %q", cfg.Storage, StorageRedis, StorageFile)
	}
	if cfg.StorageKey == "" {
		return nil, errors.New("storage_key cannot be empty")
	}
	if cfg.Brand == "" {
		return nil, errors.New("brand cannot be empty")
	}
	if cfg.Rules.DefaultFee < 0 || cfg.Rules.AbsencePenalty < 0 || cfg.Rules.SessionsPerWeek < 0 {
		return nil, errors.New("fee, penalty and sessions per week must not be negative")
	}
	if cfg.Rules.DateLayout == "" {
		return nil, errors.New("date_layout cannot be empty")
	}
	return cfg, nil
}
