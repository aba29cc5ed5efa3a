package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/config-rotator/app/feed"
)

type SweepTempFilesTask struct {
	Task
	store  *feed.Store
	maxAge time.Duration
}

func NewSweepTempFilesTask(store *feed.Store, maxAge time.Duration) *SweepTempFilesTask {
	task := &SweepTempFilesTask{
		Task:   NewTask(TaskTypeSweepTempFiles, store.Root()),
		store:  store,
		maxAge: maxAge,
	}
	// The next tick sweeps again.
	task.MaxRetries = 0
	return task
}

func (t *SweepTempFilesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	removed, err := t.store.SweepTemp(t.maxAge)
	if err != nil {
		return fmt.Errorf("failed to sweep temporary files: %w", err)
	}

	if removed > 0 {
		slog.Info("Task completed",
			"type", "SweepTempFiles",
			"root", t.Subject,
			"duration", t.GetDuration(),
			"removed", removed)
	}

	return nil
}
