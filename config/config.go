package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"quiz-battle/service"

	"github.com/joho/godotenv"
)

// Config настройки сервиса
type Config struct {
	Port           string
	LogLevel       string
	AllowedOrigins []string

	RedisAddr     string // Пустой адрес отключает хранилище итогов
	RedisPassword string
	RedisDB       int
	ResultTTL     time.Duration

	JWTSecret        string
	QuizServiceURL   string // Пустой адрес - только встроенные вопросы
	QuizFetchTimeout time.Duration

	SweepInterval time.Duration
	Battle        *service.BattleConfig

	EnvFileLoaded bool
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	envFileLoaded := godotenv.Load() == nil

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		RedisAddr:      lookupEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		QuizServiceURL: getEnv("QUIZ_SERVICE_URL", ""),
		Battle:         service.DefaultBattleConfig(),
		EnvFileLoaded:  envFileLoaded,
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.ResultTTL, err = getEnvDuration("RESULT_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.QuizFetchTimeout, err = getEnvDuration("QUIZ_FETCH_TIMEOUT", cfg.Battle.QuizFetchTimeout); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getEnvDuration("SWEEP_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}

	b := cfg.Battle
	b.QuizFetchTimeout = cfg.QuizFetchTimeout
	if b.MaxHealth, err = getEnvInt("MAX_HEALTH", b.MaxHealth); err != nil {
		return nil, err
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SUDDEN_DEATH_WINDOW", &b.SuddenDeathWindow},
		{"ROUND_HARD_TIMEOUT", &b.RoundHardTimeout},
		{"ROUND_PAUSE", &b.RoundPause},
		{"TEARDOWN_GRACE", &b.TeardownGrace},
		{"DISCONNECT_FORFEIT_AFTER", &b.DisconnectForfeitAfter},
	}
	for _, d := range durations {
		if *d.dst, err = getEnvDuration(d.key, *d.dst); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Battle.MaxHealth <= 0 {
		return fmt.Errorf("MAX_HEALTH must be positive, got %d", c.Battle.MaxHealth)
	}
	if c.Battle.SuddenDeathWindow <= 0 || c.Battle.RoundHardTimeout <= 0 {
		return fmt.Errorf("round timeouts must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return nil
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// lookupEnv как getEnv, но явно заданное пустое значение сохраняется
func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
