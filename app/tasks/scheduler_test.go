package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/config-rotator/app/feed"
)

// countingTask fails until it has run failUntil times.
type countingTask struct {
	Task
	mu        sync.Mutex
	runs      int
	failUntil int
	done      chan struct{}
}

func newCountingTask(failUntil int) *countingTask {
	return &countingTask{
		Task:      NewTask(TaskTypeRecordCompletion, "test#1"),
		failUntil: failUntil,
		done:      make(chan struct{}),
	}
}

func (c *countingTask) Execute(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runs++
	if c.runs <= c.failUntil {
		return errors.New("mock error")
	}
	close(c.done)
	return nil
}

func (c *countingTask) Runs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for task")
	}
}

func TestNewScheduler(t *testing.T) {
	store := feed.NewStore(t.TempDir(), "")
	scheduler := newScheduler(store, time.Second, 2, time.Hour)

	if scheduler.workerCount != 2 {
		t.Errorf("Expected worker count 2, got %d", scheduler.workerCount)
	}

	if scheduler.interval != time.Second {
		t.Errorf("Expected interval 1s, got %v", scheduler.interval)
	}

	if scheduler.QueueLength() != 0 {
		t.Errorf("Expected queue length 0, got %d", scheduler.QueueLength())
	}
}

func TestSchedulerExecutesTask(t *testing.T) {
	scheduler := newScheduler(nil, time.Hour, 1, time.Hour)
	scheduler.Start()
	defer scheduler.Stop()

	task := newCountingTask(0)
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	waitFor(t, task.done)

	if task.Runs() != 1 {
		t.Errorf("Expected 1 run, got %d", task.Runs())
	}
}

func TestSchedulerRetriesFailedTask(t *testing.T) {
	scheduler := newScheduler(nil, time.Hour, 1, time.Hour)
	scheduler.retryDelay = time.Millisecond
	scheduler.Start()
	defer scheduler.Stop()

	task := newCountingTask(2)
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	waitFor(t, task.done)

	if task.Runs() != 3 {
		t.Errorf("Expected 3 runs, got %d", task.Runs())
	}
	if task.GetRetryCount() != 2 {
		t.Errorf("Expected retry count 2, got %d", task.GetRetryCount())
	}
}

func TestSchedulerGivesUpAfterMaxRetries(t *testing.T) {
	scheduler := newScheduler(nil, time.Hour, 1, time.Hour)
	scheduler.retryDelay = time.Millisecond

	task := newCountingTask(DefaultMaxRetries + 10)
	for i := 0; i <= DefaultMaxRetries; i++ {
		scheduler.executeTask(0, task)
	}

	if task.CanRetry() {
		t.Error("Expected task to have exhausted its retries")
	}

	scheduler.Stop()

	if task.Runs() != DefaultMaxRetries+1 {
		t.Errorf("Expected %d runs, got %d", DefaultMaxRetries+1, task.Runs())
	}
}

func TestEnqueueTaskQueueFull(t *testing.T) {
	scheduler := newScheduler(nil, time.Hour, 1, time.Hour)
	defer scheduler.Stop()

	for i := 0; i < queueSize; i++ {
		if err := scheduler.EnqueueTask(newCountingTask(0)); err != nil {
			t.Fatalf("Expected no error at %d, got: %v", i, err)
		}
	}

	if scheduler.QueueLength() != queueSize {
		t.Errorf("Expected queue length %d, got %d", queueSize, scheduler.QueueLength())
	}

	if err := scheduler.EnqueueTask(newCountingTask(0)); err == nil {
		t.Error("Expected error for full queue")
	}
}

func TestEnqueueTaskAfterStop(t *testing.T) {
	scheduler := newScheduler(nil, time.Hour, 1, time.Hour)
	scheduler.Start()
	scheduler.Stop()

	err := scheduler.EnqueueTask(newCountingTask(0))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestSchedulerSweepsOnStart(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "myPVob")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	stale := filepath.Join(dir, ".CR1-1.xml.tmp-123")
	if err := os.WriteFile(stale, []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	scheduler := newScheduler(feed.NewStore(root, ""), time.Hour, 1, time.Hour)
	scheduler.Start()
	defer scheduler.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(stale); os.IsNotExist(err) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected stale temporary file to be removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
