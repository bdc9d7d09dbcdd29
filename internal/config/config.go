package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"translation-server/internal/utils"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию для Translation Server
type Config struct {
	// Настройки сервера
	Port               string `envconfig:"TRANSLATION_SERVER_PORT" default:"8086"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"info"`
	Env                string `envconfig:"ENV" default:"development"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Настройки Redis (кэш content store)
	RedisAddr       string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	ContentCacheTTL time.Duration `envconfig:"CONTENT_CACHE_TTL" default:"30m"`

	// Настройки RabbitMQ
	RabbitMQURL            string `envconfig:"RABBITMQ_URL" required:"true"`
	ProgressQueueName      string `envconfig:"TRANSLATION_PROGRESS_QUEUE" default:"translation_progress"`
	MasterUpdatesQueueName string `envconfig:"MASTER_CONTENT_UPDATES_QUEUE" default:"master_content_updates"`
	ClientUpdatesQueueName string `envconfig:"CLIENT_UPDATES_QUEUE_NAME" default:"client_updates"`

	// Фоновые процессы
	ReaperInterval time.Duration `envconfig:"REAPER_INTERVAL" default:"1m"`
	ProgressTTL    time.Duration `envconfig:"TRANSLATION_PROGRESS_TTL" default:"30m"`

	// Секретное поле БЕЗ envconfig тега (межсервисный JWT)
	InterServiceSecret string
}

// GetAllowedOrigins возвращает список разрешенных CORS origin'ов.
func (c *Config) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов
func LoadConfig() (*Config, error) {
	var cfg Config
	// Загружаем НЕсекретные переменные
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации translation-server: %w", err)
	}

	// Загружаем ОБЯЗАТЕЛЬНЫЕ секреты
	var loadErr error
	cfg.DBPassword, loadErr = utils.ReadSecret("db_password")
	if loadErr != nil {
		return nil, loadErr
	}

	cfg.InterServiceSecret, loadErr = utils.ReadSecret("inter_service_secret")
	if loadErr != nil {
		return nil, loadErr
	}

	log.Printf("Конфигурация Translation Server загружена (секреты из файлов):")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	log.Printf("  Redis Addr: %s", cfg.RedisAddr)
	log.Printf("  RabbitMQ URL: %s", cfg.RabbitMQURL)
	log.Printf("  Progress Queue: %s", cfg.ProgressQueueName)
	log.Printf("  Master Updates Queue: %s", cfg.MasterUpdatesQueueName)
	log.Printf("  Client Updates Queue: %s", cfg.ClientUpdatesQueueName)
	log.Printf("  Progress TTL: %v", cfg.ProgressTTL)
	log.Println("  Inter-Service Secret: [ЗАГРУЖЕН]")

	return &cfg, nil
}
