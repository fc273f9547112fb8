package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Server    ServerConfig    `yaml:"server"`
	Service   ServiceConfig   `yaml:"service"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	Host        string   `yaml:"host"`
	CORSOrigins []string `yaml:"cors_origins"`
	// Transport-level guard in front of mutating endpoints,
	// independent of the per-user broadcast limits.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	RequestBurst      int     `yaml:"request_burst"`
}

type ServiceConfig struct {
	// Timezone used for the calendar-day boundary of the daily
	// broadcast window.
	Timezone string `yaml:"timezone"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RateLimitConfig holds the seed values written into the
// broadcast_settings row on first migration. Runtime changes go
// through the admin API, not this file.
type RateLimitConfig struct {
	DailyLimit      int      `yaml:"daily_limit"`
	HourlyLimit     int      `yaml:"hourly_limit"`
	CooldownMinutes int      `yaml:"cooldown_minutes"`
	BypassRoles     []string `yaml:"bypass_roles"`
}

var AppConfig *Config

func LoadConfig() error {
	// Try to find config file in different locations
	configPaths := []string{
		"secret/app.yaml",
		"app.yaml",
		"config/app.yaml",
		"./app.yaml",
	}

	var configPath string
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			configPath = path
			break
		}
	}

	if configPath == "" {
		return fmt.Errorf("config file not found in any of the expected locations: %v", configPaths)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %v", configPath, err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %v", err)
	}

	setDefaults(config)

	AppConfig = config
	return nil
}

func setDefaults(config *Config) {
	// Database defaults
	if config.Database.Host == "" {
		config.Database.Host = "localhost"
	}
	if config.Database.Port == 0 {
		config.Database.Port = 5432
	}
	if config.Database.User == "" {
		config.Database.User = "talk_user"
	}
	if config.Database.Password == "" {
		config.Database.Password = "talk_password"
	}
	if config.Database.Name == "" {
		config.Database.Name = "talk_db"
	}
	if config.Database.SSLMode == "" {
		config.Database.SSLMode = "disable"
	}

	// JWT defaults
	if config.JWT.Secret == "" {
		config.JWT.Secret = "talk-super-secret-jwt-key-change-in-production"
	}
	if config.JWT.Expiry == "" {
		config.JWT.Expiry = "24h"
	}

	// Server defaults
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if len(config.Server.CORSOrigins) == 0 {
		config.Server.CORSOrigins = []string{"http://localhost:3000"}
	}
	if config.Server.RequestsPerSecond == 0 {
		config.Server.RequestsPerSecond = 10
	}
	if config.Server.RequestBurst == 0 {
		config.Server.RequestBurst = 20
	}

	// Service defaults
	if config.Service.Timezone == "" {
		config.Service.Timezone = "Asia/Seoul"
	}

	// Logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	// Broadcast limit seed defaults
	if config.RateLimit.DailyLimit == 0 {
		config.RateLimit.DailyLimit = 20
	}
	if config.RateLimit.HourlyLimit == 0 {
		config.RateLimit.HourlyLimit = 5
	}
	if config.RateLimit.CooldownMinutes == 0 {
		config.RateLimit.CooldownMinutes = 10
	}
	if len(config.RateLimit.BypassRoles) == 0 {
		config.RateLimit.BypassRoles = []string{"admin"}
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		// Try to load config if not already loaded
		if err := LoadConfig(); err != nil {
			// If loading fails, create a default config
			config := &Config{}
			setDefaults(config)
			AppConfig = config
		}
	}
	return AppConfig
}
