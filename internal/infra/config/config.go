package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервиса.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AI struct {
		BaseURL string        `envconfig:"AI_BASE_URL" default:"http://127.0.0.1:8001"`
		Timeout time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Scraper struct {
		Timeout time.Duration `envconfig:"SCRAPE_TIMEOUT" default:"15s"`
	} `envconfig:""`

	Session struct {
		TTL time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	} `envconfig:""`

	Report struct {
		CacheTTL time.Duration `envconfig:"REPORT_CACHE_TTL" default:"5m"`
	} `envconfig:""`

	AudioDir string `envconfig:"AUDIO_DIR" default:"/tmp/echorank-audio"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
