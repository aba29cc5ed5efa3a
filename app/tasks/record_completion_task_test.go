package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danjacques/gofslock/fslock"

	"github.com/lysyi3m/config-rotator/app/feed"
	"github.com/lysyi3m/config-rotator/app/lock"
	"github.com/lysyi3m/config-rotator/app/rotator"
)

func testCompletion(buildID string, names ...string) rotator.Completion {
	components := make([]rotator.Component, 0, len(names))
	for _, name := range names {
		components = append(components, &rotator.ClearCaseUCMComponent{
			Baseline:       name,
			PVob:           "myPVob",
			PromotionLevel: rotator.PromotionBuilt,
		})
	}
	build := rotator.Build{ID: buildID, CompletedAt: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)}
	return rotator.NewCompletion(build, rotator.Compatible, components)
}

func TestRecordCompletionTaskWritesFeeds(t *testing.T) {
	store := feed.NewStore(t.TempDir(), "")
	recorder := rotator.NewRecorder(store, lock.NewGuard(lock.Options{FileLock: true}))

	task := NewRecordCompletionTask(testCompletion("rotator#1", "CR1-1", "CR2-1"), recorder)

	if task.GetType() != TaskTypeRecordCompletion {
		t.Errorf("Expected type %s, got %s", TaskTypeRecordCompletion, task.GetType())
	}
	if task.GetSubject() != "rotator#1" {
		t.Errorf("Expected subject 'rotator#1', got '%s'", task.GetSubject())
	}

	task.Start()
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(task.Pending()) != 0 {
		t.Errorf("Expected nothing pending, got %d", len(task.Pending()))
	}
	if task.LastReport().Count(rotator.StatusWritten) != 2 {
		t.Errorf("Expected 2 written feeds, got %+v", task.LastReport().Components)
	}
}

func TestRecordCompletionTaskRetriesOnlyBusyFeeds(t *testing.T) {
	store := feed.NewStore(t.TempDir(), "")
	guard := lock.NewGuard(lock.Options{Timeout: 50 * time.Millisecond, PollInterval: time.Millisecond, FileLock: true})
	recorder := rotator.NewRecorder(store, guard)

	busy, err := store.ResolvePath(feed.Identity{Namespace: "myPVob", Name: "CR2-1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(busy), 0755); err != nil {
		t.Fatal(err)
	}
	handle, err := fslock.Lock(busy + ".lock")
	if err != nil {
		t.Fatalf("Failed to take file lock: %v", err)
	}

	task := NewRecordCompletionTask(testCompletion("rotator#2", "CR1-1", "CR2-1", "CR3-2"), recorder)

	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected error while a feed lock is held")
	}

	pending := task.Pending()
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending component, got %d", len(pending))
	}
	if pending[0].Component.Identity().Name != "CR2-1" {
		t.Errorf("Expected CR2-1 to be pending, got %s", pending[0].Component.Identity().Name)
	}

	if err := handle.Unlock(); err != nil {
		t.Fatal(err)
	}

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected retry to succeed, got: %v", err)
	}

	report := task.LastReport()
	if len(report.Components) != 1 {
		t.Fatalf("Expected retry to process only the pending component, got %d", len(report.Components))
	}
	if report.Components[0].Status != rotator.StatusWritten {
		t.Errorf("Expected status %s, got %s", rotator.StatusWritten, report.Components[0].Status)
	}

	for _, name := range []string{"CR1-1", "CR2-1", "CR3-2"} {
		doc, err := store.Load(feed.Identity{Namespace: "myPVob", Name: name})
		if err != nil {
			t.Fatalf("Expected no error loading %s, got: %v", name, err)
		}
		if doc.Len() != 1 {
			t.Errorf("Expected 1 entry in %s, got %d", name, doc.Len())
		}
	}
}

func TestRecordCompletionTaskCancelled(t *testing.T) {
	store := feed.NewStore(t.TempDir(), "")
	recorder := rotator.NewRecorder(store, lock.NewGuard(lock.Options{}))

	task := NewRecordCompletionTask(testCompletion("rotator#3", "CR1-1"), recorder)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := task.Execute(ctx); err == nil {
		t.Error("Expected error for cancelled context")
	}
	if len(task.Pending()) != 1 {
		t.Errorf("Expected 1 pending component, got %d", len(task.Pending()))
	}
}

func TestSweepTempFilesTask(t *testing.T) {
	store := feed.NewStore(t.TempDir(), "")
	task := NewSweepTempFilesTask(store, time.Hour)

	if task.CanRetry() {
		t.Error("Expected sweep task not to be retried")
	}
	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}
