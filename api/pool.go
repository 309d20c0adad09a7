package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// writeJob is a deferred remote write. done, when set, receives the outcome
// exactly once so callers can resolve optimistic state.
type writeJob struct {
	name string
	run  func(ctx context.Context) error
	done func(err error)
}

var (
	poolOnce       sync.Once
	writeJobs      chan writeJob
	writeWorkers   int
	writeJobBuf    int
	writeTimeout   time.Duration
	handoffTimeout time.Duration
	bg             = context.Background()
	poolLog        *log.Logger
	poolWG         sync.WaitGroup
)

// shutdownWritePool stops worker goroutines and clears shared state. It is intended for tests.
func shutdownWritePool() {
	if writeJobs != nil {
		close(writeJobs)
		writeJobs = nil
	}

	poolWG.Wait()

	poolLog = nil
	writeWorkers = 0
	writeJobBuf = 0
	writeTimeout = 0
	handoffTimeout = 0
	poolOnce = sync.Once{}
	poolWG = sync.WaitGroup{}
}

func initWritePool(logger *log.Logger) {
	poolOnce.Do(func() {
		if logger == nil {
			panic("Logger is not initialized")
		}
		poolLog = logger

		writeWorkers = envInt("WRITE_WORKERS", 32)
		writeJobBuf = envInt("WRITE_BUFFER", 4096)
		writeTimeout = envDur("WRITE_TIMEOUT", 60*time.Second)
		handoffTimeout = envDur("WRITE_HANDOFF_TIMEOUT", 15*time.Millisecond)

		writeJobs = make(chan writeJob, writeJobBuf)
		for i := 0; i < writeWorkers; i++ {
			poolWG.Add(1)
			go writeWorker(i, writeJobs)
		}
		poolLog.Infof("write pool started, workers: %d, buffer: %d, timeout: %v, handoff: %v", writeWorkers, writeJobBuf, writeTimeout, handoffTimeout)
	})
}

func writeWorker(id int, jobCh <-chan writeJob) {
	defer poolWG.Done()
	for j := range jobCh {
		ctx, cancel := context.WithTimeout(bg, writeTimeout)
		err := j.run(ctx)
		cancel()

		if err != nil {
			poolLog.Errorf("write failed, err: %v, job: %s, worker: %d", err, j.name, id)
		}
		if j.done != nil {
			j.done(err)
		}
	}
}

// runInline executes a job on the caller's goroutine with the pool timeout,
// used when the pool buffer is saturated or not running.
func runInline(job writeJob) error {
	timeout := writeTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(bg, timeout)
	err := job.run(ctx)
	cancel()
	if job.done != nil {
		job.done(err)
	}
	return err
}

func tryEnqueueWrite(job writeJob) bool {
	if writeJobs == nil {
		return false
	}

	if ok, closed := trySendNonBlocking(writeJobs, job); closed {
		return false
	} else if ok {
		return true
	}

	if handoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(handoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(writeJobs, job, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan writeJob, job writeJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan writeJob, job writeJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	case <-timer:
		return false, false
	}
}
