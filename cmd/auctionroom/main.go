// Command auctionroom runs the auction engine: the WebSocket session surface,
// the expiry resolver, and the DB task pipeline, all sharing one cache
// connection and one Postgres pool.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/auction"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/auth"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/bot"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/bus"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/catalogue"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/config"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/dbtasks"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/logging"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/middleware"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/ratelimit"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/resolver"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/roomstore"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/session"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/socket"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/tracing"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/userstore"
)

func main() {
	envLoaded := godotenv.Load() == nil

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(!cfg.Production); err != nil {
		panic(err)
	}
	if !envLoaded {
		logging.Warn(context.Background(), "no .env file found, relying on environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OtelExporterURL != "" {
		tp, err := tracing.InitTracer(ctx, "auction-engine", cfg.OtelExporterURL)
		if err != nil {
			logging.Error(ctx, "failed to init tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	cache, err := bus.NewService(cfg.CacheAddr, cfg.CachePassword, cfg.CachePoolSize)
	if err != nil {
		logging.Fatal(ctx, "failed to connect to cache", zap.Error(err))
	}
	defer cache.Close()

	catalogPath := os.Getenv("CATALOGUE_PATH")
	if catalogPath == "" {
		catalogPath = "catalogue.json"
	}
	cat, err := catalogue.Load(catalogPath)
	if err != nil {
		logging.Fatal(ctx, "failed to load catalogue", zap.Error(err))
	}

	store := roomstore.NewRedisStore(cache, cat)

	dbStore, err := dbtasks.Connect(ctx, cfg.DBURL, cfg.DBPoolMax)
	if err != nil {
		logging.Fatal(ctx, "failed to connect to database", zap.Error(err))
	}
	defer dbStore.Close()

	pipeline := dbtasks.New(dbStore, cache, dbtasks.Config{
		WorkerCount: cfg.DBWorkerCount,
		PollEvery:   cfg.RetryPollInterval,
		BackoffCap:  cfg.RetryBackoffCap,
		MaxAttempts: cfg.RetryMaxAttempts,
	})
	go pipeline.Run(ctx)

	sockets := socket.NewRegistry()
	auctionCfg := auction.Config{
		BidTimerSeconds: cfg.BidTimerSeconds,
		RTMTimerSeconds: cfg.RTMTimerSeconds,
		MinParticipants: cfg.MinParticipants,
		RosterSize:      cfg.RosterSize,
	}
	bots := bot.NewRoomEngines(bot.ProductionTeamIDs)
	if !cfg.Production {
		bots = bot.NewRoomEngines(bot.DevelopmentTeamIDs)
	}
	machine := auction.New(store, sockets, cat, auctionCfg, bots, pipeline)

	res := resolver.New(cache, store, sockets, cat, pipeline, auctionCfg)
	var subWg sync.WaitGroup
	go res.Run(ctx, &subWg)
	go res.RunRTM(ctx, &subWg)

	var validator auth.Validator
	if cfg.SkipAuth {
		logging.Warn(ctx, "authentication disabled; do not use in production")
		validator = &auth.MockValidator{}
	} else {
		v, err := auth.NewJWKSValidator(ctx, cfg.Auth0Domain, cfg.Auth0Audience)
		if err != nil {
			logging.Fatal(ctx, "failed to init jwks validator", zap.Error(err))
		}
		validator = v
	}

	limiter, err := ratelimit.NewRateLimiter(cfg, cache.Client())
	if err != nil {
		logging.Fatal(ctx, "failed to init rate limiter", zap.Error(err))
	}

	teams := userstore.NewStore(dbStore.DB())

	sessionHandler := session.New(store, sockets, machine, teams, validator, limiter, cfg.RoomMode)

	if cfg.GoEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	wsGroup := router.Group("/ws")
	sessionHandler.Register(wsGroup)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "auction engine starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(context.Background(), "forced shutdown", zap.Error(err))
	}
}
