package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE в образах без системной базы зон

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Environment string
	Port        int
	APIPrefix   string
	Timezone    string

	Database DatabaseConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Schedule ScheduleConfig
}

type DatabaseConfig struct {
	DSN               string
	MaxConns          int32
	MigrationsEnabled bool
}

// RedisConfig пустой Addr выключает кэш справочника слотов
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TelegramConfig пустой токен выключает оповещения персонала
type TelegramConfig struct {
	Token       string
	StaffChatID int64
}

type LogConfig struct {
	Level  string
	Format string
}

type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScheduleConfig struct {
	NoticeCutoff time.Duration
	SlotCacheTTL time.Duration
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("ENV"),
		Port:        v.GetInt("PORT"),
		APIPrefix:   v.GetString("API_PREFIX"),
		Timezone:    v.GetString("APP_TIMEZONE"),
		Database: DatabaseConfig{
			DSN:               v.GetString("DB_DSN"),
			MaxConns:          v.GetInt32("DB_MAX_CONNS"),
			MigrationsEnabled: v.GetBool("MIGRATIONS_ENABLED"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Telegram: TelegramConfig{
			Token:       v.GetString("TELEGRAM_TOKEN"),
			StaffChatID: v.GetInt64("TELEGRAM_STAFF_CHAT_ID"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	var err error
	durations := []struct {
		key  string
		dest *time.Duration
	}{
		{"HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout},
		{"HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout},
		{"SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout},
		{"NOTICE_CUTOFF", &cfg.Schedule.NoticeCutoff},
		{"SLOT_CACHE_TTL", &cfg.Schedule.SlotCacheTTL},
	}
	for _, d := range durations {
		if *d.dest, err = parseDuration(v, d.key); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	// Проверяем обязательные поля
	if c.Database.DSN == "" {
		return errors.New("DB_DSN is required but not set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be in 1..65535, got %d", c.Port)
	}
	if c.Schedule.NoticeCutoff <= 0 {
		return errors.New("NOTICE_CUTOFF must be positive")
	}
	if c.Telegram.Token != "" && c.Telegram.StaffChatID == 0 {
		return errors.New("TELEGRAM_STAFF_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	return nil
}

// IsProduction окружение production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// CacheEnabled задан адрес redis
func (c *Config) CacheEnabled() bool {
	return c.Redis.Addr != ""
}

// NotifierEnabled задан токен бота
func (c *Config) NotifierEnabled() bool {
	return c.Telegram.Token != ""
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("APP_TIMEZONE", "America/Bogota")

	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("MIGRATIONS_ENABLED", true)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("TELEGRAM_TOKEN", "")
	v.SetDefault("TELEGRAM_STAFF_CHAT_ID", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "")

	v.SetDefault("HTTP_READ_TIMEOUT", "10s")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "15s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("NOTICE_CUTOFF", "24h")
	v.SetDefault("SLOT_CACHE_TTL", "30s")
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}
