package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// Progression tuning. The XP curve and sweep cadence are deliberately
	// config-driven so ops can retune them without a deploy.
	LevelBaseXP     int    `mapstructure:"LEVEL_BASE_XP"`
	SweepCron       string `mapstructure:"SWEEP_CRON"`
	DefaultTimezone string `mapstructure:"DEFAULT_TIMEZONE"`

	// Leaderboard read-path cache TTL in seconds (bounded staleness).
	LeaderboardCacheTTL int `mapstructure:"LEADERBOARD_CACHE_TTL"`
}

var AppConfig *Config

func LoadConfig() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LEVEL_BASE_XP", 100)
	viper.SetDefault("SWEEP_CRON", "@hourly")
	viper.SetDefault("DEFAULT_TIMEZONE", "UTC")
	viper.SetDefault("LEADERBOARD_CACHE_TTL", 10)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}
}

// CacheTTL returns the leaderboard cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.LeaderboardCacheTTL) * time.Second
}
