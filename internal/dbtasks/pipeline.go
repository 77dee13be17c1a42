package dbtasks

import (
	"context"
	"math"
	"time"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/bus"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/logging"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/metrics"
	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/roomstore"
)

// Pipeline runs a pool of workers draining an unbounded in-process queue of
// DBCommands, with failures rescheduled through the shared Redis retry set
// and a dead-letter table for commands that exhaust their retry budget.
type Pipeline struct {
	store       *Store
	cache       *bus.Service
	queue       chan roomstore.DBCommand
	workerCount int
	pollEvery   time.Duration
	backoffCap  time.Duration
	maxAttempts int
}

// Config tunes worker count and retry cadence; mirrors config.Config's
// DB_WORKER_COUNT / RETRY_* knobs.
type Config struct {
	WorkerCount int
	PollEvery   time.Duration
	BackoffCap  time.Duration
	MaxAttempts int
}

// New builds a Pipeline. cache is reused only for the shared retry ZSET
// (auction:retry:zset); every other cache key belongs to the Room Store.
func New(store *Store, cache *bus.Service, cfg Config) *Pipeline {
	return &Pipeline{
		store:       store,
		cache:       cache,
		queue:       make(chan roomstore.DBCommand, 4096),
		workerCount: cfg.WorkerCount,
		pollEvery:   cfg.PollEvery,
		backoffCap:  cfg.BackoffCap,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Enqueue hands cmd to the pipeline without blocking the caller (the Bid
// State Machine and Expiry Resolver both call this inline).
func (p *Pipeline) Enqueue(cmd roomstore.DBCommand) {
	select {
	case p.queue <- cmd:
	default:
		logging.Error(context.Background(), "dbtask queue full, dropping command")
	}
}

// Run starts the worker pool and the retry poller; blocks until ctx is done.
func (p *Pipeline) Run(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(ctx)
	}
	p.retryPoller(ctx)
}

func (p *Pipeline) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-p.queue:
			p.process(ctx, cmd)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, cmd roomstore.DBCommand) {
	start := time.Now()
	err := p.store.Execute(ctx, cmd)
	metrics.DBTaskProcessingDuration.WithLabelValues(string(cmd.Kind)).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.DBTaskOutcomes.WithLabelValues(string(cmd.Kind), "ok").Inc()
		return
	}

	cmd.RetryCount++
	cmd.LastError = err.Error()
	if cmd.RetryCount >= p.maxAttempts {
		metrics.DBTaskOutcomes.WithLabelValues(string(cmd.Kind), "dead_letter").Inc()
		if dlqErr := p.store.AddToDLQ(ctx, cmd); dlqErr != nil {
			logging.Error(ctx, "dbtasks: failed to write dead-letter entry")
		}
		return
	}

	metrics.DBTaskOutcomes.WithLabelValues(string(cmd.Kind), "retry_scheduled").Inc()
	notBefore := time.Now().Add(backoff(cmd.RetryCount, p.backoffCap))
	data, encErr := roomstore.EncodeCommand(cmd)
	if encErr != nil {
		logging.Error(ctx, "dbtasks: failed to encode retry task")
		return
	}
	if err := p.cache.ZAdd(ctx, roomstore.RetrySetKey, float64(notBefore.Unix()), data); err != nil {
		logging.Error(ctx, "dbtasks: failed to schedule retry")
	}
}

// backoff is exponential (1s * 2^attempt), capped at cap.
func backoff(attempt int, cap time.Duration) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if d > cap {
		return cap
	}
	return d
}

// retryPoller periodically requeues due retry-set entries back onto the
// in-process queue.
func (p *Pipeline) retryPoller(ctx context.Context) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollDue(ctx)
		}
	}
}

func (p *Pipeline) pollDue(ctx context.Context) {
	payloads, err := p.cache.ZRangeByScore(ctx, roomstore.RetrySetKey, float64(time.Now().Unix()))
	if err != nil {
		logging.Error(ctx, "dbtasks: failed to poll retry set")
		return
	}
	for _, payload := range payloads {
		cmd, err := roomstore.DecodeCommand(payload)
		if err != nil {
			logging.Error(ctx, "dbtasks: failed to decode retry payload, dropping")
		} else {
			p.Enqueue(cmd)
		}
		if err := p.cache.ZRem(ctx, roomstore.RetrySetKey, payload); err != nil {
			logging.Error(ctx, "dbtasks: failed to remove popped retry entry")
		}
	}
	if depth, err := p.cache.ZCard(ctx, roomstore.RetrySetKey); err == nil {
		metrics.DBTaskRetryQueueDepth.Set(float64(depth))
	}
}
