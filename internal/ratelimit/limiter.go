// Package ratelimit throttles WebSocket connection attempts using Redis (or
// in-memory, when the cache is unavailable) token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/config"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/logging"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/metrics"
)

// RateLimiter gates WebSocket connection attempts per IP and per participant.
type RateLimiter struct {
	wsIP   *limiter.Limiter
	wsUser *limiter.Limiter
}

// NewRateLimiter builds a RateLimiter from cfg, backed by redisClient when
// non-nil or an in-memory store otherwise.
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	wsIPRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIP)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}
	wsUserRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsUser)
	if err != nil {
		return nil, fmt.Errorf("invalid WS user rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "limiter:auction:"})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using cache store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "rate limiter using in-memory store (cache disabled)")
	}

	return &RateLimiter{
		wsIP:   limiter.New(store, wsIPRate),
		wsUser: limiter.New(store, wsUserRate),
	}, nil
}

// CheckWebSocketIP enforces the per-IP connection attempt limit before
// authentication runs. It fails open (allows the connection) if the limiter
// store itself errors, since availability of the auction room matters more
// than enforcing the limit during a degraded cache.
func (rl *RateLimiter) CheckWebSocketIP(c *gin.Context) bool {
	ctx := c.Request.Context()
	ip := c.ClientIP()

	ipCtx, err := rl.wsIP.Get(ctx, ip)
	if err != nil {
		logging.Error(ctx, "rate limiter store failed for IP check")
		return true
	}

	if ipCtx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "ip").Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections from this IP"})
		return false
	}

	metrics.RateLimitRequests.WithLabelValues("websocket_connect").Inc()
	return true
}

// CheckWebSocketParticipant enforces the per-participant connection attempt
// limit, called once authentication has produced a participant id.
func (rl *RateLimiter) CheckWebSocketParticipant(ctx context.Context, participantID string) error {
	userCtx, err := rl.wsUser.Get(ctx, participantID)
	if err != nil {
		logging.Error(ctx, "rate limiter store failed for participant check")
		return nil
	}

	if userCtx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "participant").Inc()
		return fmt.Errorf("rate limit exceeded for participant %s", participantID)
	}
	return nil
}
