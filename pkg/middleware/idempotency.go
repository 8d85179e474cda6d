package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type IdemStore interface {
	Set(key string) bool // return true if set, false if exists
	Release(key string)
}

// lruIdemStore 基于带过期时间的 LRU，容量满时淘汰最旧的键
type lruIdemStore struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, struct{}]
}

func NewLRUIdemStore(size int, ttl time.Duration) IdemStore {
	if size <= 0 {
		size = 10000
	}
	return &lruIdemStore{lru: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func (s *lruIdemStore) Set(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lru.Contains(key) {
		return false
	}
	s.lru.Add(key, struct{}{})
	return true
}

func (s *lruIdemStore) Release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Remove(key)
}

type IdempotencyConfig struct {
	HeaderName string        // Idempotency-Key 的请求头名
	TTL        time.Duration // 决定一段时间内重复请求的拒绝窗口
	Size       int
	Store      IdemStore // 可选外部存储
}

// IdempotencyMiddleware rejects a repeated Idempotency-Key within TTL. Requests
// without the header always pass, so re-running the same video is allowed.
// A request answered with 4xx/5xx releases its key so the client can retry.
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	store := cfg.Store
	if store == nil {
		store = NewLRUIdemStore(cfg.Size, cfg.TTL)
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" {
			c.Next()
			return
		}
		k := c.FullPath() + "|" + key
		if !store.Set(k) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"detail": "duplicate request"})
			return
		}
		c.Next()
		if c.Writer.Status() >= http.StatusBadRequest {
			store.Release(k)
		}
	}
}
