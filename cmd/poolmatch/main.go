package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/pool-matching/internal/matching"
	"github.com/richxcame/pool-matching/internal/pool"
	"github.com/richxcame/pool-matching/internal/pricing"
	"github.com/richxcame/pool-matching/pkg/common"
	"github.com/richxcame/pool-matching/pkg/config"
	"github.com/richxcame/pool-matching/pkg/database"
	"github.com/richxcame/pool-matching/pkg/logger"
	"github.com/richxcame/pool-matching/pkg/middleware"
	"github.com/richxcame/pool-matching/pkg/redis"
	"go.uber.org/zap"
)

const serviceName = "pool-matching"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("connected to postgres", zap.String("host", cfg.Database.Host))

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.RedisAddr()))

	// Demand monitoring feeds surge pricing
	demandRepo := pricing.NewRepository(db)
	demand := pricing.NewDemandMonitor(
		demandRepo,
		cfg.Pricing.DemandThreshold,
		cfg.Pricing.DemandWindow,
		cfg.Pricing.DemandRefreshEvery,
	)
	go demand.Run(ctx)

	pricer := pricing.NewEngine(pricing.Params{
		BaseFare:        cfg.Pricing.BaseFare,
		PerKmRate:       cfg.Pricing.PerKmRate,
		SurgeMax:        cfg.Pricing.SurgeMax,
		BaseDiscountPct: cfg.Pricing.BaseDiscountPct,
		MaxDiscountPct:  cfg.Pricing.MaxDiscountPct,
	})
	engine := matching.NewEngine(matching.Config{
		GlobalMaxDetourKm: cfg.Matching.GlobalMaxDetourKm,
		MaxPassengers:     cfg.Matching.MaxPassengers,
		MaxLuggage:        cfg.Matching.MaxLuggage,
	})

	repo := pool.NewPostgresRepository(db)
	cache := pool.NewRedisCache(redisClient, cfg.Matching.CacheTTL)
	coordinator := pool.NewCoordinator(repo, cache, engine, pricer, demand, cfg.Matching)

	// Backfill sweep for requests orphaned by crashes or conflict aborts
	go coordinator.RunBatchMatcher(ctx)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(middleware.Metrics(serviceName))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", common.HealthCheckWithDeps(serviceName, "1.0.0", map[string]func() error{
		"postgres": func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Ping(pingCtx)
		},
		"redis": func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(pingCtx).Err()
		},
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := pool.NewHandler(coordinator)
	handler.RegisterRoutes(router.Group("/api/v1/pool"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
