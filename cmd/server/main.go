package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "SafeStack/internal/handler"
	"SafeStack/internal/listeners"
	"SafeStack/internal/models"
	"SafeStack/internal/pipeline"
	"SafeStack/pkg/backup"
	"SafeStack/pkg/cache"
	"SafeStack/pkg/config"
	"SafeStack/pkg/emitter"
	"SafeStack/pkg/frames"
	"SafeStack/pkg/i18n"
	"SafeStack/pkg/llm"
	"SafeStack/pkg/logger"
	"SafeStack/pkg/metrics"
	"SafeStack/pkg/middleware"
	"SafeStack/pkg/notification"
	"SafeStack/pkg/scheduler"
	"SafeStack/pkg/search"
	"SafeStack/pkg/sse"
	stores "SafeStack/pkg/storage"
	"SafeStack/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "create or update the schema and exit")
	flag.Parse()

	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := config.GlobalConfig
	if err := logger.Init(cfg.Log, cfg.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, *migrateOnly); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, migrateOnly bool) error {
	db, err := util.InitDatabase(cfg.DBDriver, cfg.DSN)
	if err != nil {
		return err
	}
	if err := models.Migrate(db); err != nil {
		return err
	}
	if migrateOnly {
		logger.Info("schema migrated", zap.String("driver", cfg.DBDriver))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := metrics.NewMonitor(30 * time.Second)
	monitor.Start()
	defer monitor.Stop()

	catalogCache, err := cache.NewCache(cfg.Cache)
	if err != nil {
		return err
	}
	defer catalogCache.Close()

	repo := pipeline.NewGormRepository(db)
	catalog := pipeline.NewCatalog(repo.Policies(), catalogCache, cfg.PolicyCacheTTL)
	if _, err := catalog.Warm(ctx); err != nil {
		logger.Warn("warm policy catalog failed", zap.Error(err))
	}

	orchestrator, err := buildPipeline(cfg, repo, catalog, monitor.GetMetrics())
	if err != nil {
		return err
	}

	// 告警下游
	hub := sse.NewHub(30*time.Second, 100)
	fan := listeners.AlertFanout{Stream: hub, Metrics: monitor.GetMetrics()}
	var index *search.AlertIndex
	if cfg.SearchEnabled {
		index, err = openSearch(ctx, db, func() (*search.AlertIndex, error) { return search.Open(cfg.SearchPath) })
		if err != nil {
			return err
		}
		defer index.Close()
		fan.Index = index
	}
	if cfg.MQTTBroker != "" {
		mq := emitter.NewMQTTEmitter(emitter.MQTTConfig{Broker: cfg.MQTTBroker, Topic: cfg.MQTTTopic, ClientID: cfg.MQTTClientID})
		if err := mq.Connect(ctx); err != nil {
			// 自动重连会继续尝试
			logger.Warn("mqtt connect failed", zap.Error(err))
		}
		defer mq.Disconnect()
		fan.MQTT = mq
	}
	listeners.InitAlertListeners(util.Sig(), fan)

	cron := scheduler.NewCron(time.Local, 10*time.Minute)
	if cfg.CatalogRefreshSchedule != "" {
		_, err := cron.AddWithCtx("catalog-refresh", cfg.CatalogRefreshSchedule, func(ctx context.Context) {
			if _, err := catalog.Warm(ctx); err != nil {
				logger.Warn("refresh policy catalog failed", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
	}
	if cfg.BackupEnabled {
		b := backup.New(cfg.DBDriver, cfg.DSN, db, cfg.BackupPath, cfg.BackupKeep)
		if _, err := cron.AddWithCtx("backup", cfg.BackupSchedule, b.Job); err != nil {
			return err
		}
	}
	cron.Start()
	defer cron.Stop()

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:       "120-M",
		Identifier: "ip",
		PerRouteRates: map[string]string{
			cfg.APIPrefix + "/analyze-video-full": cfg.RateLimitAnalyze,
			cfg.APIPrefix + "/analyze-frame":      "120-M",
		},
		AddHeaders: true,
	}, nil).WithObserver(middleware.NewPrometheusObserver(monitor.GetMetrics().Registry()))

	gin.SetMode(cfg.Mode)
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.CORS(middleware.CORSConfig{Origins: cfg.CORSAllowOrigins}),
		metrics.MonitorMiddleware(monitor.GetMetrics()),
	)
	monitor.RegisterRoutes(engine.Group(cfg.MonitorPrefix))

	opts := handlers.Options{
		APIPrefix:     cfg.APIPrefix,
		DatabaseLabel: cfg.DBDriver,
		Analyzer:      orchestrator,
		Catalog:       catalog,
		Hub:           hub,
		Limiter:       limiter,
		Idempotency:   middleware.IdempotencyConfig{TTL: cfg.IdempotencyTTL, Size: 4096},
		Signals:       util.Sig(),
	}
	if index != nil {
		opts.Search = index
	}
	handlers.NewHandlers(db, opts).Register(engine)

	srv := &http.Server{Addr: cfg.Addr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("safestack listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}

func buildPipeline(cfg *config.Config, repo *pipeline.GormRepository, catalog *pipeline.Catalog, observer pipeline.Observer) (*pipeline.Orchestrator, error) {
	lg := logrus.New()
	lg.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		lg.SetLevel(lvl)
	}

	modelNames := llm.Models{
		Video: cfg.LLMVideoModel,
		Frame: cfg.LLMFrameModel,
		Image: cfg.LLMImageModel,
		Text:  cfg.LLMTextModel,
	}
	var vision llm.Vision
	switch cfg.LLMProvider {
	case "ollama":
		vision = llm.NewOllamaHandler(cfg.LLMBaseURL, modelNames, lg)
	default:
		vision = llm.NewOpenAIHandler(cfg.LLMApiKey, cfg.LLMBaseURL, modelNames, lg)
	}

	extractor, err := frames.NewFFmpegExtractor(cfg.FFmpegPath, lg)
	if err != nil {
		return nil, err
	}

	store, err := stores.NewStore(cfg.StorageKind)
	if err != nil {
		return nil, err
	}

	tr, err := i18n.NewI18nSupport(cfg.AlertLocale)
	if err != nil {
		return nil, err
	}
	composer := notification.NewComposer(tr, cfg.AlertLocale)

	deps := pipeline.Deps{
		Policies:   repo.Policies(),
		Videos:     repo.Videos(),
		Alerts:     repo.Alerts(),
		Catalog:    catalog,
		Vision:     vision,
		Frames:     extractor,
		Evidence:   stores.NewEvidence(store),
		Composer:   composer,
		Downloader: pipeline.NewHTTPDownloader(cfg.DownloadTimeout, cfg.DownloadMaxBytes),
		Sink:       pipeline.NewSignalSink(util.Sig()),
		Observer:   observer,
	}
	if cfg.Mail.Host != "" {
		deps.Notifier = notification.NewMailer(cfg.Mail, composer)
		deps.AlertRecipient = cfg.AlertRecipient
	} else {
		logger.Warn("MAIL_HOST not set, alert emails disabled")
	}
	return pipeline.New(deps), nil
}

// openSearch 打开告警索引；新索引从数据库回填
func openSearch(ctx context.Context, db *gorm.DB, open func() (*search.AlertIndex, error)) (*search.AlertIndex, error) {
	index, err := open()
	if err != nil {
		return nil, err
	}
	if err := backfillIndex(ctx, db, index); err != nil {
		// 失败时释放索引文件锁
		_ = index.Close()
		return nil, err
	}
	return index, nil
}

func backfillIndex(ctx context.Context, db *gorm.DB, index *search.AlertIndex) error {
	n, err := index.Count()
	if err != nil || n > 0 {
		return err
	}
	alerts, err := models.ListAlerts(db.WithContext(ctx), models.AlertFilter{Limit: 100000})
	if err != nil {
		return err
	}
	if err := index.IndexBatch(ctx, alerts); err != nil {
		return err
	}
	logger.Info("alert index rebuilt", zap.Int("alerts", len(alerts)))
	return nil
}
