package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"slipforge/internal/aggregator"
	slipcache "slipforge/internal/cache"
	"slipforge/internal/config"
	cronrunner "slipforge/internal/cron"
	"slipforge/internal/db"
	"slipforge/internal/dispatch"
	"slipforge/internal/engine"
	"slipforge/internal/events"
	"slipforge/internal/features"
	"slipforge/internal/handler"
	"slipforge/internal/logger"
	"slipforge/internal/persister"
	gormrepository "slipforge/internal/repository/gorm"
	"slipforge/internal/service"
	"slipforge/internal/tracker"
	"slipforge/internal/worker"
)

func main() {
	cfgPath := os.Getenv("SF_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SF_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	resultCache, memCache := buildCache(cfg.Cache, log)

	engineClient := engine.NewClient(cfg.Engine.BaseURL, &http.Client{})
	dispatcher := &dispatch.Controller{
		Engine: engineClient,
		Cache:  resultCache,
		Logger: log,
	}

	jobTracker := &tracker.Tracker{
		Store:  store,
		Events: &events.ZapSink{Logger: log},
		Logger: log,
	}

	featureComputer := &features.Computer{Store: store, Logger: log}

	predictionTrigger := &service.PredictionTriggerService{
		Repo:       store,
		Dispatcher: dispatcher,
		Logger:     log,
	}
	slipAggregator := &aggregator.Aggregator{
		Store:   store,
		Trigger: predictionTrigger,
		Logger:  log,
	}

	resultPersister := &persister.Persister{
		Store:    store,
		Tracker:  jobTracker,
		Logger:   log,
		MaxSlips: cfg.Generation.MaxSlips,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := &worker.Pool{
		Queues:       cfg.Queues,
		Store:        store,
		Logger:       log,
		ScanInterval: cfg.Worker.RetryScanInterval,
		ClaimBatch:   cfg.Worker.RetryClaimBatch,
		QueueDepth:   cfg.Worker.QueueDepth,
	}

	generation := &service.GenerationService{
		Repo:       store,
		Aggregator: slipAggregator,
		Features:   featureComputer,
		Dispatcher: dispatcher,
		Persister:  resultPersister,
		Tracker:    jobTracker,
		Pool:       pool,
		Logger:     log,
		Config:     cfg,
	}
	pool.Exec = generation

	go func() {
		if err := pool.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("worker pool stopped", zap.Error(err))
		}
	}()

	if cfg.Cron.Enabled {
		runner := cronrunner.New(log, rootCtx)
		if memCache != nil {
			_, err = runner.Add(cfg.Cron.CacheSweep, func(ctx context.Context) {
				if dropped := memCache.Sweep(); dropped > 0 {
					log.Debug("cache sweep", zap.Int("dropped", dropped))
				}
			})
			if err != nil {
				log.Warn("cache sweep schedule failed", zap.Error(err))
			}
		}
		_, err = runner.Add(cfg.Cron.StaleJobs, func(ctx context.Context) {
			cutoff := time.Now().UTC().Add(-cfg.Cron.StaleJobAge)
			expired, err := store.ExpireStaleJobs(ctx, cutoff)
			if err != nil {
				log.Warn("stale job expiry failed", zap.Error(err))
				return
			}
			if expired > 0 {
				log.Info("expired stale jobs", zap.Int64("jobs", expired))
			}
		})
		if err != nil {
			log.Warn("stale job schedule failed", zap.Error(err))
		}
		runner.Start()
		defer runner.Stop()
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	(&handler.HealthHandler{DB: dbConn.Gorm}).Register(router)
	(&handler.SlipHandler{Service: generation, Repo: store, Logger: log}).Register(router)
	(&handler.JobHandler{Repo: store}).Register(router)
	(&handler.FeatureHandler{Repo: store, Computer: featureComputer, Logger: log}).Register(router)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
}

// buildCache picks the configured cache backend. The memory cache is also
// returned separately so the sweep cron can reach it; Redis expires keys
// on its own.
func buildCache(cfg config.CacheConfig, log *zap.Logger) (slipcache.Cache, *slipcache.Memory) {
	if strings.EqualFold(cfg.Backend, "redis") {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		log.Info("result cache backend: redis", zap.String("addr", cfg.RedisAddr))
		return slipcache.NewRedis(rdb), nil
	}
	mem := slipcache.NewMemory()
	log.Info("result cache backend: memory")
	return mem, mem
}
