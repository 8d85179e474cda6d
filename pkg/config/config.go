package config

import (
	"log"
	"os"
	"time"

	"SafeStack/pkg/cache"
	"SafeStack/pkg/logger"
	"SafeStack/pkg/notification"
	"SafeStack/pkg/util"
)

// config/config.go
type Config struct {
	DBDriver  string `env:"DB_DRIVER"`
	DSN       string `env:"DSN"`
	Log       logger.LogConfig
	Mail      notification.MailConfig
	Addr      string `env:"ADDR"`
	Mode      string `env:"MODE"`
	APIPrefix string `env:"API_PREFIX"`

	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS"`

	AlertRecipient string `env:"ALERT_EMAIL_RECIPIENT"`
	AlertLocale    string `env:"ALERT_LOCALE"`

	LLMProvider   string `env:"LLM_PROVIDER"`
	LLMApiKey     string `env:"LLM_API_KEY"`
	LLMBaseURL    string `env:"LLM_BASE_URL"`
	LLMVideoModel string `env:"LLM_VIDEO_MODEL"`
	LLMFrameModel string `env:"LLM_FRAME_MODEL"`
	LLMImageModel string `env:"LLM_IMAGE_MODEL"`
	LLMTextModel  string `env:"LLM_TEXT_MODEL"`
	FFmpegPath    string `env:"FFMPEG_PATH"`

	StorageKind string `env:"STORAGE_KIND"`

	Cache          cache.Config
	PolicyCacheTTL time.Duration `env:"POLICY_CACHE_TTL"`

	RateLimitAnalyze string `env:"RATE_LIMIT_ANALYZE"`
	IdempotencyTTL   time.Duration `env:"IDEMPOTENCY_TTL"`

	DownloadTimeout  time.Duration `env:"DOWNLOAD_TIMEOUT"`
	DownloadMaxBytes int64         `env:"DOWNLOAD_MAX_BYTES"`

	BackupEnabled  bool   `env:"BACKUP_ENABLED"`
	BackupPath     string `env:"BACKUP_PATH"`
	BackupSchedule string `env:"BACKUP_SCHEDULE"`
	BackupKeep     int    `env:"BACKUP_KEEP"`

	CatalogRefreshSchedule string `env:"CATALOG_REFRESH_SCHEDULE"`

	MonitorPrefix string `env:"MONITOR_PREFIX"`

	SearchEnabled bool   `env:"SEARCH_ENABLED"`
	SearchPath    string `env:"SEARCH_PATH"`

	MQTTBroker   string `env:"MQTT_BROKER"`
	MQTTTopic    string `env:"MQTT_TOPIC"`
	MQTTClientID string `env:"MQTT_CLIENT_ID"`
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	err := util.LoadEnv(env)
	if err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = FromEnv()
	return nil
}

// FromEnv builds a Config from the process environment, filling defaults.
func FromEnv() *Config {
	return &Config{
		DBDriver:  util.GetEnvDefault("DB_DRIVER", "sqlite"),
		DSN:       util.GetEnvDefault("DSN", "safestack.db"),
		Addr:      util.GetEnvDefault("ADDR", ":8000"),
		Mode:      util.GetEnvDefault("MODE", "release"),
		APIPrefix: util.GetEnv("API_PREFIX"),

		CORSAllowOrigins: util.GetListEnv("CORS_ALLOW_ORIGINS", []string{"*"}),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		Mail: notification.MailConfig{
			Host:     util.GetEnv("MAIL_HOST"),
			Username: util.GetEnv("MAIL_USERNAME"),
			Password: util.GetEnv("MAIL_PASSWORD"),
			Port:     int(util.GetIntEnv("MAIL_PORT")),
			From:     util.GetEnv("MAIL_FROM"),
		},
		AlertRecipient: util.GetEnv("ALERT_EMAIL_RECIPIENT"),
		AlertLocale:    util.GetEnvDefault("ALERT_LOCALE", "en"),

		LLMProvider:   util.GetEnvDefault("LLM_PROVIDER", "openai"),
		LLMApiKey:     util.GetEnv("LLM_API_KEY"),
		LLMBaseURL:    util.GetEnv("LLM_BASE_URL"),
		LLMVideoModel: util.GetEnv("LLM_VIDEO_MODEL"),
		LLMFrameModel: util.GetEnv("LLM_FRAME_MODEL"),
		LLMImageModel: util.GetEnv("LLM_IMAGE_MODEL"),
		LLMTextModel:  util.GetEnv("LLM_TEXT_MODEL"),
		FFmpegPath:    util.GetEnv("FFMPEG_PATH"),

		StorageKind: util.GetEnvDefault("STORAGE_KIND", "minio"),

		Cache: cache.Config{
			Type: util.GetEnvDefault("CACHE_TYPE", "gocache"),
			Redis: cache.RedisConfig{
				Addr:     util.GetEnvDefault("REDIS_ADDR", "localhost:6379"),
				Password: util.GetEnv("REDIS_PASSWORD"),
				DB:       int(util.GetIntEnv("REDIS_DB")),
				PoolSize: int(util.GetIntEnv("REDIS_POOL_SIZE")),
				Prefix:   util.GetEnvDefault("REDIS_PREFIX", "safestack:"),
			},
			Local: cache.LocalConfig{
				DefaultExpiration: util.GetDurationEnv("LOCAL_CACHE_EXPIRATION", 10*time.Minute),
				CleanupInterval:   util.GetDurationEnv("LOCAL_CACHE_CLEANUP", 15*time.Minute),
			},
		},
		PolicyCacheTTL: util.GetDurationEnv("POLICY_CACHE_TTL", 10*time.Minute),

		RateLimitAnalyze: util.GetEnvDefault("RATE_LIMIT_ANALYZE", "10-M"),
		IdempotencyTTL:   util.GetDurationEnv("IDEMPOTENCY_TTL", 10*time.Minute),

		DownloadTimeout:  util.GetDurationEnv("DOWNLOAD_TIMEOUT", 5*time.Minute),
		DownloadMaxBytes: util.GetIntEnv("DOWNLOAD_MAX_BYTES"),

		BackupEnabled:  util.GetBoolEnv("BACKUP_ENABLED"),
		BackupPath:     util.GetEnvDefault("BACKUP_PATH", "backups"),
		BackupSchedule: util.GetEnvDefault("BACKUP_SCHEDULE", "0 3 * * *"),
		BackupKeep:     int(util.GetIntEnv("BACKUP_KEEP")),

		CatalogRefreshSchedule: util.GetEnv("CATALOG_REFRESH_SCHEDULE"),

		MonitorPrefix: util.GetEnvDefault("MONITOR_PREFIX", "/monitor"),

		SearchEnabled: util.GetBoolEnv("SEARCH_ENABLED"),
		SearchPath:    util.GetEnvDefault("SEARCH_PATH", "alerts.bleve"),

		MQTTBroker:   util.GetEnv("MQTT_BROKER"),
		MQTTTopic:    util.GetEnvDefault("MQTT_TOPIC", "safestack/alerts"),
		MQTTClientID: util.GetEnvDefault("MQTT_CLIENT_ID", "safestack"),
	}
}
