package verification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voiceguard/internal/spool"
)

// Job is one queued analysis.
type Job struct {
	CallID        int64
	ParticipantID string
	OpponentID    string
	Attempt       int64
	Ticket        spool.Ticket
	EnqueuedAt    time.Time
}

// JobHandler processes admitted jobs and settles rejected ones.
// Both must release the job's spool ticket.
type JobHandler interface {
	Run(ctx context.Context, j Job)
	Reject(ctx context.Context, j Job, reason string)
}

// Limiter is a cluster-wide concurrency cap (see utils.ConcurrencyCap).
type Limiter interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type PoolConfig struct {
	Workers int

	// QueueSize is raised to Workers when smaller.
	QueueSize int

	// Limiter is optional. A worker that cannot get a slot within CapacityWait
	// rejects the job with ReasonCapacity.
	Limiter      Limiter
	CapacityWait time.Duration
}

// Pool runs analyses on a fixed set of workers fed by a bounded queue.
// Enqueue never blocks: a full queue is reported to the caller immediately.
type Pool struct {
	cfg     PoolConfig
	handler JobHandler
	log     *slog.Logger
	metrics *Metrics

	mu      sync.RWMutex
	jobs    chan Job
	stopped bool
	started bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(cfg PoolConfig, handler JobHandler, log *slog.Logger, metrics *Metrics) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	// An unbuffered queue would reject jobs whenever no worker is parked on it.
	if cfg.QueueSize < cfg.Workers {
		cfg.QueueSize = cfg.Workers
	}
	if cfg.CapacityWait <= 0 {
		cfg.CapacityWait = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		cfg:     cfg,
		handler: handler,
		log:     log,
		metrics: metrics,
		jobs:    make(chan Job, cfg.QueueSize),
	}
}

// Start launches the workers. Jobs run under ctx, detached from any request.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.runCtx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Enqueue hands j to the workers or fails fast with ErrQueueFull / ErrPoolStopped.
func (p *Pool) Enqueue(j Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- j:
		p.metrics.SetQueueDepth(len(p.jobs))
		return nil
	default:
		p.metrics.IncQueueRejected(ReasonQueueFull)
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for queued and in-flight jobs to finish.
// If ctx ends first, running jobs are canceled and ctx.Err() is returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()
	for j := range p.jobs {
		p.metrics.SetQueueDepth(len(p.jobs))
		p.process(j)
	}
	p.log.Debug("analysis worker exited", "worker", n)
}

func (p *Pool) process(j Job) {
	ctx := p.runCtx
	admitted, release := p.admit(ctx)
	if !admitted {
		p.metrics.IncQueueRejected(ReasonCapacity)
		p.handler.Reject(ctx, j, ReasonCapacity)
		return
	}
	if release {
		defer func() {
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := p.cfg.Limiter.Release(relCtx); err != nil {
				p.log.Warn("release analysis slot", "err", err)
			}
		}()
	}
	p.handler.Run(ctx, j)
}

// admit takes a Limiter slot. A limiter error admits the job without a slot.
func (p *Pool) admit(ctx context.Context) (admitted, release bool) {
	if p.cfg.Limiter == nil {
		return true, false
	}
	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.CapacityWait)
	defer cancel()

	backoff := 25 * time.Millisecond
	for {
		ok, err := p.cfg.Limiter.Acquire(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				return false, false
			}
			p.log.Warn("analysis limiter unavailable, running without slot", "err", err)
			return true, false
		}
		if ok {
			return true, true
		}
		select {
		case <-waitCtx.Done():
			return false, false
		case <-time.After(backoff):
		}
		if backoff < 400*time.Millisecond {
			backoff *= 2
		}
	}
}
