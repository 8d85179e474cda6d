package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig 跨域配置；Origins 含 "*" 时放行任意来源
type CORSConfig struct {
	Origins []string
	MaxAge  time.Duration
}

// CORS lets browser clients call the API. With "*" the request origin is
// echoed back so credentials still work.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "Last-Event-ID", "X-Camera-ID"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           cfg.MaxAge,
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 12 * time.Hour
	}
	origins := make([]string, 0, len(cfg.Origins))
	wildcard := len(cfg.Origins) == 0
	for _, o := range cfg.Origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			wildcard = true
		default:
			origins = append(origins, o)
		}
	}
	if wildcard {
		c.AllowOriginFunc = func(string) bool { return true }
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}
