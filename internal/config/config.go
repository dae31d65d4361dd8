package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string
	AllowedOrigin     string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	LogLevel          string
	AuthSecret        string
	AccessTokenTTL    time.Duration
	VoucherPrefix     string
	CurrencyCode      string
	CurrencyExponent  int
	LowStockThreshold int64
	StatsCacheTTL     time.Duration
	SeedAdminUser     string
	SeedAdminPassword string
}

func Load() (Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("ACCESS_TOKEN_TTL", "8h")
	viper.SetDefault("VOUCHER_PREFIX", "V")
	viper.SetDefault("CURRENCY_CODE", "MMK")
	viper.SetDefault("CURRENCY_EXPONENT", 0)
	viper.SetDefault("LOW_STOCK_THRESHOLD", 5)
	viper.SetDefault("STATS_CACHE_TTL", "30s")
	viper.SetDefault("SEED_ADMIN_USER", "")

	tokenTTL, err := time.ParseDuration(viper.GetString("ACCESS_TOKEN_TTL"))
	if err != nil || tokenTTL <= 0 {
		return Config{}, fmt.Errorf("invalid ACCESS_TOKEN_TTL: %q", viper.GetString("ACCESS_TOKEN_TTL"))
	}
	statsTTL, err := time.ParseDuration(viper.GetString("STATS_CACHE_TTL"))
	if err != nil || statsTTL <= 0 {
		return Config{}, fmt.Errorf("invalid STATS_CACHE_TTL: %q", viper.GetString("STATS_CACHE_TTL"))
	}
	exponent := viper.GetInt("CURRENCY_EXPONENT")
	if exponent < 0 || exponent > 4 {
		return Config{}, fmt.Errorf("invalid CURRENCY_EXPONENT: %d", exponent)
	}

	cfg := Config{
		Port:              viper.GetString("PORT"),
		AllowedOrigin:     viper.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:       viper.GetString("DATABASE_URL"),
		RedisAddr:         viper.GetString("REDIS_ADDR"),
		RedisPassword:     viper.GetString("REDIS_PASSWORD"),
		RedisDB:           viper.GetInt("REDIS_DB"),
		LogLevel:          viper.GetString("LOG_LEVEL"),
		AuthSecret:        strings.TrimSpace(viper.GetString("AUTH_SECRET")),
		AccessTokenTTL:    tokenTTL,
		VoucherPrefix:     viper.GetString("VOUCHER_PREFIX"),
		CurrencyCode:      viper.GetString("CURRENCY_CODE"),
		CurrencyExponent:  exponent,
		LowStockThreshold: viper.GetInt64("LOW_STOCK_THRESHOLD"),
		StatsCacheTTL:     statsTTL,
		SeedAdminUser:     strings.TrimSpace(viper.GetString("SEED_ADMIN_USER")),
		SeedAdminPassword: viper.GetString("SEED_ADMIN_PASSWORD"),
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
