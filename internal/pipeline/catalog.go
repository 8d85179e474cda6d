package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SafeStack/internal/models"
	"SafeStack/pkg/cache"
	"SafeStack/pkg/logger"

	"go.uber.org/zap"
)

const catalogCacheKey = "policy:catalog"

// RenderCatalog renders policies, already ordered by level then title, into the
// prompt text. An empty slice renders as "".
func RenderCatalog(policies []models.Policy) string {
	blocks := make([]string, 0, len(policies))
	for _, p := range policies {
		blocks = append(blocks, fmt.Sprintf("[Severity %d] %s\n\nDescription: %s", p.Level, p.Title, p.Description))
	}
	return strings.Join(blocks, "\n\n")
}

// Catalog serves the rendered policy catalog, optionally through a cache.
type Catalog struct {
	policies PolicyRepository
	cache    cache.Cache
	ttl      time.Duration
}

// NewCatalog builds a Catalog. A nil cache renders on every call.
func NewCatalog(policies PolicyRepository, c cache.Cache, ttl time.Duration) *Catalog {
	return &Catalog{policies: policies, cache: c, ttl: ttl}
}

// Text returns the catalog text.
func (c *Catalog) Text(ctx context.Context) (string, error) {
	if c.cache != nil {
		if text, ok := c.cache.Get(ctx, catalogCacheKey); ok {
			return text, nil
		}
	}
	return c.Warm(ctx)
}

// Warm re-renders the catalog from the repository and refreshes the cache.
func (c *Catalog) Warm(ctx context.Context) (string, error) {
	policies, err := c.policies.ListAll(ctx)
	if err != nil {
		return "", fmt.Errorf("load policy catalog: %w", err)
	}
	text := RenderCatalog(policies)
	if c.cache != nil {
		if err := c.cache.Set(ctx, catalogCacheKey, text, c.ttl); err != nil {
			logger.Warn("cache policy catalog failed", zap.Error(err))
		}
	}
	return text, nil
}

// Invalidate drops the cached text after any policy change.
func (c *Catalog) Invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, catalogCacheKey); err != nil {
		logger.Warn("invalidate policy catalog failed", zap.Error(err))
	}
}
