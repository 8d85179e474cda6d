package handlers

import (
	"context"

	"SafeStack/internal/models"
	"SafeStack/internal/pipeline"
	"SafeStack/pkg/middleware"
	"SafeStack/pkg/search"
	"SafeStack/pkg/sse"
	"SafeStack/pkg/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Analyzer 分析流水线，对应 pipeline.Orchestrator
type Analyzer interface {
	RunFullAnalysis(ctx context.Context, videoURL string) (*pipeline.Summary, error)
	AnalyzeFrame(ctx context.Context, req pipeline.FrameRequest) (*pipeline.FrameResult, error)
	AmendPolicy(ctx context.Context, alertID uint, feedback string) (*models.Policy, error)
}

// CatalogInvalidator is told whenever the policy table changes.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context)
}

type AlertSearcher interface {
	Search(ctx context.Context, req search.Request) ([]search.Hit, error)
}

type Options struct {
	APIPrefix string
	// DatabaseLabel 健康检查里展示的数据库标识
	DatabaseLabel string

	Analyzer    Analyzer
	Catalog     CatalogInvalidator
	Hub         *sse.Hub
	Search      AlertSearcher
	Limiter     *middleware.RateLimiter
	Idempotency middleware.IdempotencyConfig
	Signals     *util.Signals
}

type Handlers struct {
	db   *gorm.DB
	opts Options
}

func NewHandlers(db *gorm.DB, opts Options) *Handlers {
	if opts.Signals == nil {
		opts.Signals = util.Sig()
	}
	return &Handlers{db: db, opts: opts}
}

func (h *Handlers) Register(engine *gin.Engine) {
	r := engine.Group(h.opts.APIPrefix)

	h.registerSystemRoutes(r)
	h.registerAnalysisRoutes(r)
	h.registerUserRoutes(r)
	h.registerPolicyRoutes(r)
	h.registerAlertRoutes(r)
	h.registerVideoRoutes(r)
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.HealthCheck)

	r.GET("/stats", h.GetStats)

	system := r.Group("system")
	{
		system.GET("/rate-limiter/config", h.GetRateLimiterConfig)

		system.POST("/rate-limiter/config", h.UpdateRateLimiterConfig)
	}
}

// Analysis Module
func (h *Handlers) registerAnalysisRoutes(r *gin.RouterGroup) {
	idem := middleware.IdempotencyMiddleware(h.opts.Idempotency)
	guarded := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		chain := make([]gin.HandlerFunc, 0, 3)
		if h.opts.Limiter != nil {
			chain = append(chain, h.opts.Limiter.Middleware())
		}
		return append(chain, idem, handler)
	}

	r.POST("/analyze-video-full", guarded(h.handleAnalyzeVideoFull)...)

	r.POST("/analyze-frame", guarded(h.handleAnalyzeFrame)...)

	r.POST("/amend-policy", h.handleAmendPolicy)
}

func (h *Handlers) registerUserRoutes(r *gin.RouterGroup) {
	users := r.Group("users")
	{
		users.GET("", h.ListUsers)

		users.GET("/:email", h.GetUser)

		users.POST("", h.CreateUser)

		users.DELETE("/:email", h.DeleteUser)
	}
}

func (h *Handlers) registerPolicyRoutes(r *gin.RouterGroup) {
	policies := r.Group("policies")
	{
		policies.GET("", h.ListPolicies)

		policies.GET("/:id", h.GetPolicy)

		policies.POST("", h.CreatePolicy)

		policies.DELETE("/:id", h.DeletePolicy)
	}
}

func (h *Handlers) registerAlertRoutes(r *gin.RouterGroup) {
	alerts := r.Group("alerts")
	{
		alerts.GET("", h.ListAlerts)

		// live push, ?group=level:3 / policy:7
		alerts.GET("/stream", h.StreamAlerts)

		alerts.GET("/search", h.SearchAlerts)

		alerts.GET("/:id", h.GetAlert)

		alerts.POST("", h.CreateAlert)

		alerts.DELETE("/:id", h.DeleteAlert)
	}
}

func (h *Handlers) registerVideoRoutes(r *gin.RouterGroup) {
	videos := r.Group("videos")
	{
		videos.GET("", h.ListVideos)

		videos.GET("/:id", h.GetVideo)

		videos.POST("", h.CreateVideo)

		videos.DELETE("/:id", h.DeleteVideo)
	}
}
