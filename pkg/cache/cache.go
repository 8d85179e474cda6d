package cache

import (
	"context"
	"time"
)

// Cache 字符串缓存接口，目前只用于缓存渲染后的规定目录
type Cache interface {
	// Get 获取缓存值
	Get(ctx context.Context, key string) (string, bool)

	// Set 设置缓存值，expiration<=0 使用默认过期时间
	Set(ctx context.Context, key, value string, expiration time.Duration) error

	// Delete 删除缓存
	Delete(ctx context.Context, key string) error

	// Close 关闭缓存连接
	Close() error
}

// Config 缓存配置
type Config struct {
	// 缓存类型: "gocache" 或 "redis"
	Type string `env:"CACHE_TYPE" default:"gocache"`

	Redis RedisConfig
	Local LocalConfig
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" default:"0"`

	// 连接池大小
	PoolSize int `env:"REDIS_POOL_SIZE" default:"10"`

	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" default:"3s"`

	// Prefix 所有键的前缀
	Prefix string `env:"REDIS_PREFIX" default:"safestack:"`
}

// LocalConfig 本地缓存配置
type LocalConfig struct {
	DefaultExpiration time.Duration `env:"POLICY_CACHE_TTL" default:"5m"`
	CleanupInterval   time.Duration `default:"10m"`
}
