package config

import (
	"time"

	"github.com/bananalabs-oss/potassium/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Host          string
	Port          string
	DatabaseURL   string
	JWTSecret     string
	ServiceToken  string
	RedisAddr     string
	RedisPassword string
	GamedataURL   string
	SweepSchedule string
	RateLimitMax  int
	RateLimitWin  time.Duration
	LogLevel      string
	AppEnv        string
}

// Load reads configuration from the environment, preferring a local .env
// file when present. Missing required variables are fatal.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Host:          config.EnvOrDefault("HOST", "0.0.0.0"),
		Port:          config.EnvOrDefault("PORT", "8004"),
		DatabaseURL:   config.EnvOrDefault("DATABASE_URL", "sqlite://partyboard.db"),
		JWTSecret:     config.RequireEnv("JWT_SECRET"),
		ServiceToken:  config.RequireEnv("SERVICE_TOKEN"),
		RedisAddr:     config.EnvOrDefault("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: config.EnvOrDefault("REDIS_PASSWORD", ""),
		GamedataURL:   config.EnvOrDefault("GAMEDATA_URL", "https://api.tibiadata.com"),
		SweepSchedule: config.EnvOrDefault("SWEEP_SCHEDULE", "@every 5m"),
		RateLimitMax:  100,
		RateLimitWin:  time.Second,
		LogLevel:      config.EnvOrDefault("LOG_LEVEL", "info"),
		AppEnv:        config.EnvOrDefault("APP_ENV", "development"),
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL %q, using info", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg
}
