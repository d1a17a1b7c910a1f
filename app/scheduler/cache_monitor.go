package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var cacheUp = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "cache_up",
	Help: "Whether the Redis cache answered the last health check (1) or not (0)",
})

// CacheMonitor pings Redis periodically and exposes the result. Features backed
// by Redis degrade on their own; the monitor only reports.
type CacheMonitor struct {
	rdb      *redis.Client
	interval time.Duration
	logger   *log.Logger
	healthy  atomic.Bool
}

func NewCacheMonitor(rdb *redis.Client, interval time.Duration, logger *log.Logger) *CacheMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CacheMonitor{rdb: rdb, interval: interval, logger: logger}
}

// Healthy reports the result of the most recent check
func (m *CacheMonitor) Healthy() bool {
	return m.healthy.Load()
}

func (m *CacheMonitor) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.check(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()

	return cancel
}

func (m *CacheMonitor) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.interval/2)
	defer cancel()

	err := m.rdb.Ping(pingCtx).Err()
	was := m.healthy.Swap(err == nil)
	switch {
	case err != nil:
		cacheUp.Set(0)
		if was {
			m.logger.Printf("cache monitor: redis unreachable: %v", err)
		}
	default:
		cacheUp.Set(1)
		if !was {
			m.logger.Printf("cache monitor: redis reachable")
		}
	}
}
