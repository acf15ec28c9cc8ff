package task

import (
	"context"
	"sync"
	"time"
)

const defaultRunInterval = time.Hour

// Job is a unit of periodic background work.
type Job interface {
	Run(ctx context.Context)
}

// Scheduler runs a job on a fixed interval. RunNow forces an immediate run
// between ticks. Stop blocks until the loop has exited.
type Scheduler struct {
	interval  time.Duration
	job       Job
	runNow    chan struct{}
	stateLock sync.Mutex
	cancel    context.CancelFunc
	stopped   chan struct{}
}

// NewScheduler builds a scheduler for the job. A non-positive interval falls
// back to one hour.
func NewScheduler(interval time.Duration, job Job) *Scheduler {
	if interval <= 0 {
		interval = defaultRunInterval
	}
	return &Scheduler{
		interval: interval,
		job:      job,
		runNow:   make(chan struct{}, 1),
	}
}

// Start launches the run loop. Starting an already started scheduler is a
// no-op.
func (scheduler *Scheduler) Start(ctx context.Context) {
	if scheduler == nil || scheduler.job == nil {
		return
	}
	scheduler.stateLock.Lock()
	defer scheduler.stateLock.Unlock()
	if scheduler.cancel != nil {
		return
	}

	loopContext, cancel := context.WithCancel(ctx)
	scheduler.cancel = cancel
	scheduler.stopped = make(chan struct{})
	go scheduler.loop(loopContext, scheduler.stopped)
}

// RunNow requests an immediate run. The request is dropped when one is
// already pending.
func (scheduler *Scheduler) RunNow() {
	if scheduler == nil {
		return
	}
	select {
	case scheduler.runNow <- struct{}{}:
	default:
	}
}

// Stop ends the run loop and waits for it to finish.
func (scheduler *Scheduler) Stop() {
	if scheduler == nil {
		return
	}
	scheduler.stateLock.Lock()
	cancel := scheduler.cancel
	stopped := scheduler.stopped
	scheduler.cancel = nil
	scheduler.stopped = nil
	scheduler.stateLock.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopped != nil {
		<-stopped
	}
}

func (scheduler *Scheduler) loop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(scheduler.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-scheduler.runNow:
			scheduler.job.Run(ctx)
		case <-ticker.C:
			scheduler.job.Run(ctx)
		}
	}
}
