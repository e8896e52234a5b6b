// Package worker runs the background jobs: pending expiry and rate sync.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Periodic runs a Job on a fixed interval until its context ends or Stop
// is called.
type Periodic struct {
	job      Job
	interval time.Duration
	runFirst bool
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewPeriodic builds a runner. When runFirst is set the job also runs once
// immediately on Start.
func NewPeriodic(job Job, interval time.Duration, runFirst bool, logger *zap.Logger) *Periodic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Periodic{
		job:      job,
		interval: interval,
		runFirst: runFirst,
		logger:   logger.With(zap.String("job", job.Name())),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start blocks; call it in its own goroutine.
func (p *Periodic) Start(ctx context.Context) {
	defer close(p.done)
	p.logger.Info("starting worker", zap.Duration("interval", p.interval))

	if p.runFirst {
		p.runOnce(ctx)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.stopChan:
			p.logger.Info("stopping worker")
			return
		case <-ctx.Done():
			p.logger.Info("context cancelled, stopping worker")
			return
		}
	}
}

func (p *Periodic) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker panicked", zap.Any("panic", r))
		}
	}()
	if err := p.job.Run(ctx); err != nil {
		p.logger.Error("worker run failed", zap.Error(err))
	}
}

// Stop asks Start to return and waits for it.
func (p *Periodic) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	<-p.done
}
