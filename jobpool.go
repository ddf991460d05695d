package mqttiot

import (
	"runtime"
	"sync"
	"time"
)

// JobState is the lifecycle state of a scheduled Job.
type JobState int

const (
	// JobPending means the job has not fired yet.
	JobPending JobState = iota
	// JobRunning means the job's function is currently executing.
	JobRunning
	// JobCompleted means the job's function has returned.
	JobCompleted
	// JobCancelled means TryCancel stopped the job before it ran.
	JobCancelled
)

// CancelResult reports what TryCancel actually managed to do.
type CancelResult int

const (
	// CancelOK means the job was pending and is now cancelled.
	CancelOK CancelResult = iota
	// CancelInProgress means the job's function was already running when
	// TryCancel was called; it was not interrupted.
	CancelInProgress
	// CancelAlreadyCompleted means the job had already run to completion.
	CancelAlreadyCompleted
)

// Job is a deferred unit of work scheduled on a JobPool: a keep-alive
// PINGREQ, a QoS1 retransmit, or a response-wait timeout.
type Job struct {
	mu    sync.Mutex
	state JobState
	timer *time.Timer
	fn    func()
}

// TryCancel attempts to stop the job before it runs. It returns CancelOK
// if it succeeded, CancelInProgress if the job's function had already
// started (and is left running), and CancelAlreadyCompleted if the
// function had already returned.
func (j *Job) TryCancel() CancelResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.state {
	case JobPending:
		if j.timer != nil {
			j.timer.Stop()
		}
		j.state = JobCancelled
		return CancelOK
	case JobRunning:
		return CancelInProgress
	case JobCancelled:
		return CancelOK
	default:
		return CancelAlreadyCompleted
	}
}

// State returns the job's current lifecycle state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) run() {
	j.mu.Lock()
	if j.state != JobPending {
		j.mu.Unlock()
		return
	}
	j.state = JobRunning
	fn := j.fn
	j.mu.Unlock()

	fn()

	j.mu.Lock()
	j.state = JobCompleted
	j.mu.Unlock()
}

// JobPool schedules work for a connection: process-send handoffs, the
// keep-alive PINGREQ/PINGRESP-deadline pair, and QoS1 retransmit timers.
// A zero-delay Schedule call is fed to a bounded pool of worker
// goroutines (runtime.GOMAXPROCS by default) over a channel; a delayed
// call runs through time.AfterFunc. A connection keeps one JobPool and
// lets it outlive any single scheduled Job so retries can be
// rescheduled without tearing anything else down.
type JobPool struct {
	mu    sync.Mutex
	jobs  map[*Job]struct{}
	queue chan *Job
	stop  chan struct{}
	once  sync.Once
}

// NewJobPool creates a JobPool and starts its worker goroutines.
func NewJobPool() *JobPool {
	p := &JobPool{
		jobs:  make(map[*Job]struct{}),
		queue: make(chan *Job, 64),
		stop:  make(chan struct{}),
	}

	workers := runtime.GOMAXPROCS(0)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

func (p *JobPool) worker() {
	for {
		select {
		case job := <-p.queue:
			job.run()
			p.mu.Lock()
			delete(p.jobs, job)
			p.mu.Unlock()
		case <-p.stop:
			return
		}
	}
}

// Schedule runs fn after delay elapses, returning a Job that can be
// cancelled with TryCancel before it fires. A zero or negative delay
// hands the job to the worker pool instead of arming a timer.
func (p *JobPool) Schedule(delay time.Duration, fn func()) *Job {
	job := &Job{state: JobPending, fn: fn}

	p.mu.Lock()
	p.jobs[job] = struct{}{}
	p.mu.Unlock()

	if delay <= 0 {
		select {
		case p.queue <- job:
		case <-p.stop:
		}
		return job
	}

	job.timer = time.AfterFunc(delay, func() {
		job.run()
		p.mu.Lock()
		delete(p.jobs, job)
		p.mu.Unlock()
	})

	return job
}

// CancelAll cancels every job still pending in the pool and stops its
// worker goroutines. Jobs already running or completed are left alone;
// the pool is not reusable after this call.
func (p *JobPool) CancelAll() {
	p.mu.Lock()
	jobs := make([]*Job, 0, len(p.jobs))
	for j := range p.jobs {
		jobs = append(jobs, j)
	}
	p.mu.Unlock()

	for _, j := range jobs {
		j.TryCancel()
	}

	p.once.Do(func() { close(p.stop) })
}

// Len returns the number of jobs the pool is still tracking (pending or
// not yet reaped after firing).
func (p *JobPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}
