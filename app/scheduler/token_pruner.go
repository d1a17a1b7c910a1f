// Package scheduler runs the background workers of the dispatch engine
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/wilaya-connect/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var pushTokenPrunesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_token_prunes_total",
		Help: "Total number of push token prune requests by result",
	},
	[]string{"result"},
)

// TokenRemover deletes one token from a citizen's token set
type TokenRemover interface {
	RemoveToken(ctx context.Context, citizenID uint, token string) error
}

type pruneJob struct {
	citizenID uint
	token     string
}

// TokenPruner removes push tokens the provider reported as permanently invalid.
// Requests are queued and processed off the dispatch path; a full queue drops
// the request rather than blocking the caller.
type TokenPruner struct {
	remover TokenRemover
	rdb     *redis.Client
	prefix  string
	jobs    chan pruneJob
	workers int
	timeout time.Duration
	logger  *log.Logger
	wg      sync.WaitGroup
}

// NewTokenPruner creates a pruner. rdb is optional and only de-duplicates
// repeated requests for the same token.
func NewTokenPruner(remover TokenRemover, rdb *redis.Client, redisPrefix string, queueSize, workers int, timeout time.Duration, logger *log.Logger) *TokenPruner {
	if queueSize < 1 {
		queueSize = 1024
	}
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TokenPruner{
		remover: remover,
		rdb:     rdb,
		prefix:  redisPrefix,
		jobs:    make(chan pruneJob, queueSize),
		workers: workers,
		timeout: timeout,
		logger:  logger,
	}
}

// Enqueue schedules a removal and reports whether it was accepted
func (p *TokenPruner) Enqueue(citizenID uint, token string) bool {
	if token == "" {
		return true
	}
	select {
	case p.jobs <- pruneJob{citizenID: citizenID, token: token}:
		return true
	default:
		pushTokenPrunesTotal.WithLabelValues("dropped").Inc()
		return false
	}
}

// Start launches the workers. The returned function stops them after the
// queued requests are drained.
func (p *TokenPruner) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			p.wg.Wait()
		})
	}
}

func (p *TokenPruner) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			p.handle(job)
		case <-ctx.Done():
			for {
				select {
				case job := <-p.jobs:
					p.handle(job)
				default:
					return
				}
			}
		}
	}
}

func (p *TokenPruner) handle(job pruneJob) {
	// detached from the worker context so draining on shutdown still completes
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	dedupKey := ""
	if p.rdb != nil {
		key := fmt.Sprintf("%s%s%d:%s", p.prefix, utils.TokenPruneDedupKey, job.citizenID, job.token)
		fresh, err := p.rdb.SetNX(ctx, key, 1, utils.TokenPruneDedupTTL).Result()
		switch {
		case err != nil:
			p.logger.Printf("token pruner: dedup check failed: %v", err)
		case !fresh:
			pushTokenPrunesTotal.WithLabelValues("duplicate").Inc()
			return
		default:
			dedupKey = key
		}
	}

	if err := p.remover.RemoveToken(ctx, job.citizenID, job.token); err != nil {
		pushTokenPrunesTotal.WithLabelValues("error").Inc()
		p.logger.Printf("token pruner: failed to remove token for citizen %d: %v", job.citizenID, err)
		if dedupKey != "" {
			// let the next report retry the removal
			if derr := p.rdb.Del(context.Background(), dedupKey).Err(); derr != nil {
				p.logger.Printf("token pruner: failed to clear dedup key: %v", derr)
			}
		}
		return
	}
	pushTokenPrunesTotal.WithLabelValues("removed").Inc()
	p.logger.Printf("token pruner: removed invalid token for citizen %d", job.citizenID)
}
