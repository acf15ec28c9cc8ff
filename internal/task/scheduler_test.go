package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testRunInterval = 10 * time.Millisecond
	testRunTimeout  = 2 * time.Second
)

type countingJob struct {
	runCount int64
}

func (job *countingJob) Run(context.Context) {
	atomic.AddInt64(&job.runCount, 1)
}

func (job *countingJob) runs() int64 {
	return atomic.LoadInt64(&job.runCount)
}

func TestNewSchedulerDefaultsInterval(t *testing.T) {
	scheduler := NewScheduler(0, &countingJob{})
	require.Equal(t, defaultRunInterval, scheduler.interval)
}

func TestSchedulerRunsOnRequest(t *testing.T) {
	job := &countingJob{}
	scheduler := NewScheduler(testRunInterval, job)
	runtimeContext, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	scheduler.Start(runtimeContext)
	scheduler.RunNow()

	require.Eventually(t, func() bool {
		return job.runs() > 0
	}, testRunTimeout, testRunInterval)

	scheduler.Stop()
	require.Nil(t, scheduler.cancel)
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	job := &countingJob{}
	scheduler := NewScheduler(testRunInterval, job)
	scheduler.Start(context.Background())
	t.Cleanup(scheduler.Stop)

	require.Eventually(t, func() bool {
		return job.runs() >= 2
	}, testRunTimeout, testRunInterval)
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	scheduler := NewScheduler(testRunInterval, &countingJob{})
	scheduler.Start(context.Background())
	stoppedAfterStart := scheduler.stopped
	require.NotNil(t, scheduler.cancel)
	scheduler.Start(context.Background())
	require.Equal(t, stoppedAfterStart, scheduler.stopped)
	scheduler.Stop()
}

func TestSchedulerHandlesNilReceiver(t *testing.T) {
	var scheduler *Scheduler
	scheduler.Start(context.Background())
	scheduler.RunNow()
	scheduler.Stop()
}

func TestSchedulerSkipsStartWithoutJob(t *testing.T) {
	scheduler := NewScheduler(testRunInterval, nil)
	scheduler.Start(context.Background())
	require.Nil(t, scheduler.cancel)
}
