package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит конфигурацию приложения
type Config struct {
	Environment string
	Server      ServerConfig
	Redis       RedisConfig
	MQTT        MQTTConfig
	MySQL       MySQLConfig
	Auth        AuthConfig
	Scoring     ScoringConfig
	Monitoring  MonitoringConfig
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Address      string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RedisConfig конфигурация Redis
type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// MQTTConfig конфигурация MQTT
type MQTTConfig struct {
	URL          string
	ClientID     string
	Username     string
	Password     string
	CleanSession bool
	OrderMatters bool
	TopicPrefix  string
}

// MySQLConfig конфигурация MySQL (маршруты, участники, исторические позиции)
type MySQLConfig struct {
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
}

// AuthConfig конфигурация аутентификации операторских endpoints
type AuthConfig struct {
	Endpoint string
	CacheTTL time.Duration
}

// ScoringConfig конфигурация расчетного движка
type ScoringConfig struct {
	// Задержка между временем позиции и моментом ее обработки.
	// Дает шанс поздним данным прийти до фиксации результата.
	CalculationDelay time.Duration
	// Разрыв во времени, после которого недостающее окно
	// дозапрашивается из исторического хранилища.
	GapThreshold time.Duration
	// Таймаут ожидания следующей позиции в главном цикле воркера
	QueueTimeout time.Duration
	// Интервал перечитывания участника из внешнего хранилища
	CompetitorRefreshInterval time.Duration
	// Интервал опроса флага внешнего завершения
	TerminationPollInterval time.Duration
	// Шаг интерполяции между разреженными позициями
	InterpolationStep time.Duration
}

// MonitoringConfig конфигурация мониторинга
type MonitoringConfig struct {
	MetricsEnabled bool
	MetricsPort    string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Address:      getEnv("SERVER_ADDRESS", ":8090"),
			Port:         getEnv("SERVER_PORT", "8090"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getInt("REDIS_DB", 0),
			PoolSize:     getInt("REDIS_POOL_SIZE", 100),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 10),
		},
		MQTT: MQTTConfig{
			URL:          getEnv("MQTT_URL", "tcp://localhost:1883"),
			ClientID:     getEnv("MQTT_CLIENT_ID", "scoring-api"),
			Username:     getEnv("MQTT_USERNAME", ""),
			Password:     getEnv("MQTT_PASSWORD", ""),
			CleanSession: getBool("MQTT_CLEAN_SESSION", false),
			OrderMatters: getBool("MQTT_ORDER_MATTERS", false),
			TopicPrefix:  getEnv("MQTT_TOPIC_PREFIX", "tracking/+/position"),
		},
		MySQL: MySQLConfig{
			DSN:          getEnv("MYSQL_DSN", ""),
			MaxIdleConns: getInt("MYSQL_MAX_IDLE_CONNS", 10),
			MaxOpenConns: getInt("MYSQL_MAX_OPEN_CONNS", 100),
		},
		Auth: AuthConfig{
			Endpoint: getEnv("AUTH_ENDPOINT", "https://api.airsports.example/api/v1/auth/verify"),
			CacheTTL: getDuration("AUTH_CACHE_TTL", 5*time.Minute),
		},
		Scoring: ScoringConfig{
			CalculationDelay:          getDuration("CALCULATION_DELAY", 0),
			GapThreshold:              getDuration("GAP_THRESHOLD", 3*time.Second),
			QueueTimeout:              getDuration("QUEUE_TIMEOUT", 15*time.Second),
			CompetitorRefreshInterval: getDuration("COMPETITOR_REFRESH_INTERVAL", 30*time.Second),
			TerminationPollInterval:   getDuration("TERMINATION_POLL_INTERVAL", 15*time.Second),
			InterpolationStep:         getDuration("INTERPOLATION_STEP", 1*time.Second),
		},
		Monitoring: MonitoringConfig{
			MetricsEnabled: getBool("METRICS_ENABLED", true),
			MetricsPort:    getEnv("METRICS_PORT", "9090"),
		},
	}

	// Валидация
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	// Проверка портов
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	// Проверка Redis URL
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	// Проверка MQTT URL
	if c.MQTT.URL == "" {
		return fmt.Errorf("MQTT_URL is required")
	}

	// Проверка настроек движка
	if c.Scoring.CalculationDelay < 0 {
		return fmt.Errorf("CALCULATION_DELAY must not be negative")
	}

	if c.Scoring.QueueTimeout <= 0 {
		return fmt.Errorf("QUEUE_TIMEOUT must be positive")
	}

	if c.Scoring.InterpolationStep <= 0 {
		return fmt.Errorf("INTERPOLATION_STEP must be positive")
	}

	if c.Scoring.TerminationPollInterval <= 0 {
		return fmt.Errorf("TERMINATION_POLL_INTERVAL must be positive")
	}

	return nil
}

// Helper функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// LogLevel возвращает уровень логирования
func LogLevel() string {
	return getEnv("LOG_LEVEL", "info")
}

// LogFormat возвращает формат логирования
func LogFormat() string {
	return getEnv("LOG_FORMAT", "json")
}
