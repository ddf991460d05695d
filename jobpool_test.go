package mqttiot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobPoolScheduleImmediateRunsOnWorkerPool(t *testing.T) {
	pool := NewJobPool()
	defer pool.CancelAll()

	done := make(chan struct{})
	job := pool.Schedule(0, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zero-delay job never ran")
	}

	require.Eventually(t, func() bool {
		return job.State() == JobCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestJobPoolScheduleDelayedUsesTimer(t *testing.T) {
	pool := NewJobPool()
	defer pool.CancelAll()

	done := make(chan struct{})
	start := time.Now()
	pool.Schedule(50*time.Millisecond, func() { close(done) })

	select {
	case <-done:
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("delayed job never ran")
	}
}

func TestJobPoolCancelAllStopsPendingTimerJob(t *testing.T) {
	pool := NewJobPool()

	ran := make(chan struct{}, 1)
	job := pool.Schedule(time.Hour, func() { ran <- struct{}{} })

	pool.CancelAll()

	assert.Equal(t, JobCancelled, job.State())
	select {
	case <-ran:
		t.Fatal("cancelled job must not run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestJobPoolCancelAllCoversUntrackedDeadlineJobs(t *testing.T) {
	// Mirrors fireKeepAlive's inner PINGRESP deadline: a job scheduled
	// with a real delay must be reachable by CancelAll during teardown,
	// not left to fire after the pool (and its connection) are gone.
	pool := NewJobPool()

	fired := make(chan struct{}, 1)
	pool.Schedule(200*time.Millisecond, func() { fired <- struct{}{} })
	pool.CancelAll()

	select {
	case <-fired:
		t.Fatal("deadline job scheduled through the pool should be cancelled by CancelAll")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestJobPoolLenTracksOutstandingJobs(t *testing.T) {
	pool := NewJobPool()
	defer pool.CancelAll()

	pool.Schedule(time.Hour, func() {})
	assert.Equal(t, 1, pool.Len())
}
