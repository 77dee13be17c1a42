// Package bus wraps the Redis client the rest of the engine treats as its
// shared cache: room/participant/player state, the timer-key liveness
// mechanism, the DB task retry set, and pub/sub fan-out across instances.
// Every round-trip is wrapped in a circuit breaker so a degraded cache
// degrades the engine gracefully instead of crashing it.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/logging"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/metrics"
)

// Service is the cache/bus handle shared by the Room Store, Expiry Resolver,
// and DB Task Pipeline.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client exposes the underlying redis.Client for components (miniredis-backed
// tests, or callers needing a primitive not wrapped here) that need it directly.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService dials Redis, verifies connectivity, and wires a circuit breaker
// whose state is mirrored into the circuit_breaker_state gauge.
func NewService(addr, password string, poolSize int) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     poolSize,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}

	return newServiceFromClient(rdb), nil
}

// NewServiceFromClient wraps an already-constructed *redis.Client (used by
// tests against a miniredis instance).
func NewServiceFromClient(rdb *redis.Client) *Service {
	return newServiceFromClient(rdb)
}

func newServiceFromClient(rdb *redis.Client) *Service {
	st := gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("cache").Set(stateVal)
		},
	}
	return &Service{client: rdb, cb: gobreaker.NewCircuitBreaker(st)}
}

func (s *Service) execute(ctx context.Context, op string, fn func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	res, err := s.cb.Execute(fn)
	metrics.CacheOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("cache").Inc()
			metrics.CacheOperationsTotal.WithLabelValues(op, "breaker_open").Inc()
			logging.Warn(ctx, "cache circuit breaker open, degrading", zap.String("op", op))
			return nil, ErrDegraded
		}
		metrics.CacheOperationsTotal.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	metrics.CacheOperationsTotal.WithLabelValues(op, "ok").Inc()
	return res, nil
}

// ErrDegraded is returned instead of the underlying Redis error whenever the
// circuit breaker is open; callers should treat it as "try again later" and
// never crash on it.
var ErrDegraded = fmt.Errorf("cache: circuit breaker open, degrading")

// HSet writes a hash field.
func (s *Service) HSet(ctx context.Context, key string, values ...interface{}) error {
	_, err := s.execute(ctx, "hset", func() (interface{}, error) {
		return nil, s.client.HSet(ctx, key, values...).Err()
	})
	return err
}

// HGetAll reads an entire hash.
func (s *Service) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	res, err := s.execute(ctx, "hgetall", func() (interface{}, error) {
		return s.client.HGetAll(ctx, key).Result()
	})
	if err != nil {
		if err == ErrDegraded {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return res.(map[string]string), nil
}

// HGet reads a single hash field.
func (s *Service) HGet(ctx context.Context, key, field string) (string, error) {
	res, err := s.execute(ctx, "hget", func() (interface{}, error) {
		return s.client.HGet(ctx, key, field).Result()
	})
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return res.(string), nil
}

// Set writes a string key with an optional TTL (ttl<=0 means no expiry).
func (s *Service) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.execute(ctx, "set", func() (interface{}, error) {
		return nil, s.client.Set(ctx, key, value, ttl).Err()
	})
	return err
}

// Get reads a string key. A missing key returns ("", nil).
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	res, err := s.execute(ctx, "get", func() (interface{}, error) {
		val, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			return "", nil
		}
		return val, err
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// Exists reports whether a key is present (used for the timer-key liveness check).
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	res, err := s.execute(ctx, "exists", func() (interface{}, error) {
		return s.client.Exists(ctx, key).Result()
	})
	if err != nil {
		return false, err
	}
	return res.(int64) > 0, nil
}

// Expire sets a TTL on an existing key. Used to re-arm a timer key to fire
// immediately (TTL of 1s) for the fire-now mechanics described in §4.C/D.
func (s *Service) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.execute(ctx, "expire", func() (interface{}, error) {
		return nil, s.client.Expire(ctx, key, ttl).Err()
	})
	return err
}

// Del removes one or more keys.
func (s *Service) Del(ctx context.Context, keys ...string) error {
	_, err := s.execute(ctx, "del", func() (interface{}, error) {
		return nil, s.client.Del(ctx, keys...).Err()
	})
	return err
}

// SAdd adds a member to a set.
func (s *Service) SAdd(ctx context.Context, key string, member interface{}) error {
	_, err := s.execute(ctx, "sadd", func() (interface{}, error) {
		return nil, s.client.SAdd(ctx, key, member).Err()
	})
	return err
}

// SRem removes a member from a set.
func (s *Service) SRem(ctx context.Context, key string, member interface{}) error {
	_, err := s.execute(ctx, "srem", func() (interface{}, error) {
		return nil, s.client.SRem(ctx, key, member).Err()
	})
	return err
}

// SMembers lists a set's members. Degraded mode returns an empty slice so
// callers can keep operating on whatever local state they already have.
func (s *Service) SMembers(ctx context.Context, key string) ([]string, error) {
	res, err := s.execute(ctx, "smembers", func() (interface{}, error) {
		return s.client.SMembers(ctx, key).Result()
	})
	if err != nil {
		if err == ErrDegraded {
			return nil, nil
		}
		return nil, err
	}
	return res.([]string), nil
}

// SIsMember reports set membership.
func (s *Service) SIsMember(ctx context.Context, key string, member interface{}) (bool, error) {
	res, err := s.execute(ctx, "sismember", func() (interface{}, error) {
		return s.client.SIsMember(ctx, key, member).Result()
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// ZAdd schedules a member in a sorted set (the retry set uses this, scored
// by the next-attempt unix timestamp).
func (s *Service) ZAdd(ctx context.Context, key string, score float64, member string) error {
	_, err := s.execute(ctx, "zadd", func() (interface{}, error) {
		return nil, s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	})
	return err
}

// ZRangeByScore returns members scored at most max (used to pop due retries).
func (s *Service) ZRangeByScore(ctx context.Context, key string, max float64) ([]string, error) {
	res, err := s.execute(ctx, "zrangebyscore", func() (interface{}, error) {
		return s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min: "-inf",
			Max: fmt.Sprintf("%f", max),
		}).Result()
	})
	if err != nil {
		if err == ErrDegraded {
			return nil, nil
		}
		return nil, err
	}
	return res.([]string), nil
}

// ZRem removes a member from a sorted set.
func (s *Service) ZRem(ctx context.Context, key string, member string) error {
	_, err := s.execute(ctx, "zrem", func() (interface{}, error) {
		return nil, s.client.ZRem(ctx, key, member).Err()
	})
	return err
}

// ZCard reports the cardinality of a sorted set (used for the retry queue depth gauge).
func (s *Service) ZCard(ctx context.Context, key string) (int64, error) {
	res, err := s.execute(ctx, "zcard", func() (interface{}, error) {
		return s.client.ZCard(ctx, key).Result()
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

// Publish broadcasts a room event to every engine instance subscribed to it.
func (s *Service) Publish(ctx context.Context, channel string, payload string) error {
	_, err := s.execute(ctx, "publish", func() (interface{}, error) {
		return nil, s.client.Publish(ctx, channel, payload).Err()
	})
	return err
}

// Subscribe starts a background goroutine forwarding every message on a
// channel to handler until ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context, channel string, wg *sync.WaitGroup, handler func(payload string)) {
	pubsub := s.client.Subscribe(ctx, channel)
	if wg != nil {
		wg.Add(1)
	}
	go func() {
		defer pubsub.Close()
		if wg != nil {
			defer wg.Done()
		}
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Payload)
			}
		}
	}()
}

// SubscribeExpiry subscribes to Redis keyspace-notification expired events
// (requires `notify-keyspace-events Ex` on the server) — the single source
// of liveness events the Expiry Resolver drains. Only keys matching prefix
// are forwarded to handler.
func (s *Service) SubscribeExpiry(ctx context.Context, prefix string, wg *sync.WaitGroup, handler func(key string)) {
	pattern := "__keyevent@0__:expired"
	pubsub := s.client.PSubscribe(ctx, pattern)
	if wg != nil {
		wg.Add(1)
	}
	go func() {
		defer pubsub.Close()
		if wg != nil {
			defer wg.Done()
		}
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				key := msg.Payload
				if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
					handler(key)
				}
			}
		}
	}()
}

// Ping verifies connectivity, used by health checks.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.execute(ctx, "ping", func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

// Close shuts down the underlying connection pool.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
