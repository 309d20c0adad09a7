package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestWritePoolExecutesJobs(t *testing.T) {
	t.Cleanup(shutdownWritePool)
	initWritePool(log.New())

	var ran atomic.Int32
	done := make(chan error, 1)
	job := writeJob{
		name: "test",
		run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		},
		done: func(err error) { done <- err },
	}
	if !tryEnqueueWrite(job) {
		t.Fatal("expected enqueue to succeed")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected job error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
	}
	if ran.Load() != 1 {
		t.Fatalf("expected job to run once, got %d", ran.Load())
	}
}

func TestWritePoolReportsFailureToDone(t *testing.T) {
	t.Cleanup(shutdownWritePool)
	initWritePool(log.New())

	boom := errors.New("boom")
	done := make(chan error, 1)
	job := writeJob{
		name: "test",
		run:  func(ctx context.Context) error { return boom },
		done: func(err error) { done <- err },
	}
	if !tryEnqueueWrite(job) {
		t.Fatal("expected enqueue to succeed")
	}

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("expected job error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
	}
}

func TestEnqueueFailsWhenPoolNotRunning(t *testing.T) {
	shutdownWritePool()
	if tryEnqueueWrite(writeJob{name: "test", run: func(ctx context.Context) error { return nil }}) {
		t.Fatal("expected enqueue to fail without a running pool")
	}
}

func TestRunInlineWithoutPool(t *testing.T) {
	shutdownWritePool()

	var got error
	err := runInline(writeJob{
		name: "test",
		run:  func(ctx context.Context) error { return nil },
		done: func(err error) { got = err },
	})
	if err != nil || got != nil {
		t.Fatalf("unexpected errors: run=%v done=%v", err, got)
	}
}
