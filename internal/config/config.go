package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuracion del servicio.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	DatabaseURL   string `env:"DATABASE_URL"`
	Catalog       string `env:"CATALOG"`
	Schema        string `env:"SCHEMA" envDefault:"app"`
	EnableLogging bool   `env:"ENABLE_LOGGING" envDefault:"true"`
	AutoMigrate   bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	RunSQLAsUser  bool   `env:"RUN_SQL_AS_USER" envDefault:"false"`

	ServingHost         string        `env:"DATABRICKS_HOST"`
	ServingToken        string        `env:"DATABRICKS_TOKEN"`
	ServingEndpoint     string        `env:"SERVING_ENDPOINT"`
	ServingEndpointsCSV string        `env:"SERVING_ENDPOINTS_CSV"`
	ModelCatalogFile    string        `env:"MODEL_CATALOG_FILE"`
	MaxTokens           int           `env:"MAX_TOKENS" envDefault:"400"`
	Temperature         float64       `env:"TEMPERATURE" envDefault:"0.7"`
	ServingTimeout      time.Duration `env:"SERVING_TIMEOUT" envDefault:"60s"`
	ServingMaxRetries   int           `env:"SERVING_MAX_RETRIES" envDefault:"0"`
	ServingRetryDelay   time.Duration `env:"SERVING_RETRY_DELAY" envDefault:"1s"`

	PricePromptPer1K     float64 `env:"PRICE_PROMPT_PER_1K" envDefault:"0"`
	PriceCompletionPer1K float64 `env:"PRICE_COMPLETION_PER_1K" envDefault:"0"`
	MaxTurns             int     `env:"MAX_TURNS" envDefault:"12"`
	MaxFileSizeMB        int     `env:"MAX_FILE_SIZE_MB" envDefault:"10"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SessionSecret      string        `env:"SESSION_SECRET"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	ChatRateLimit      int           `env:"CHAT_RATE_LIMIT" envDefault:"30"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// LoadConfig carga la configuracion desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.ServingHost = strings.TrimRight(strings.TrimSpace(cfg.ServingHost), "/")
	if cfg.ServingHost != "" && !strings.HasPrefix(cfg.ServingHost, "http://") && !strings.HasPrefix(cfg.ServingHost, "https://") {
		cfg.ServingHost = "https://" + cfg.ServingHost
	}
	return &cfg, nil
}

// PersistenceEnabled indica si hay warehouse configurado y el logging activo.
func (c *Config) PersistenceEnabled() bool {
	return c != nil && c.EnableLogging && strings.TrimSpace(c.DatabaseURL) != ""
}

// MaxBodyBytes limita el tamano de cualquier request entrante.
func (c *Config) MaxBodyBytes() int64 {
	if c == nil || c.MaxFileSizeMB <= 0 {
		return 10 << 20
	}
	return int64(c.MaxFileSizeMB) << 20
}
