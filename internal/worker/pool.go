package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of side-effect work run after a mutation commits.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool runs jobs on a fixed set of goroutines fed by a bounded queue. Jobs run with
// a context detached from the submitting request, bounded by the per-job timeout.
type Pool struct {
	jobs    chan Job
	timeout time.Duration
	logger  *zap.Logger
	onDrop  func(Job)

	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

// Options configure a Pool.
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	// OnDrop is called when a job is rejected because the queue is full or the
	// pool is stopped.
	OnDrop func(Job)
}

// NewPool starts the workers.
func NewPool(opts Options, logger *zap.Logger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	p := &Pool{
		jobs:    make(chan Job, opts.QueueSize),
		timeout: opts.Timeout,
		logger:  logger,
		onDrop:  opts.OnDrop,
	}
	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

// Submit enqueues job without blocking. It reports false when the job was dropped.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.drop(job)
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.drop(job)
		return false
	}
}

// Stop refuses new jobs, drains the queue and waits for in-flight jobs.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.jobs)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", zap.String("job", job.Name), zap.Any("panic", r))
		}
	}()
	if err := job.Run(ctx); err != nil {
		p.logger.Warn("job failed", zap.String("job", job.Name), zap.Error(err))
	}
}

func (p *Pool) drop(job Job) {
	p.logger.Warn("job dropped", zap.String("job", job.Name))
	if p.onDrop != nil {
		p.onDrop(job)
	}
}
