package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lysyi3m/config-rotator/app/rotator"
)

// RecordCompletionTask writes a build completion to the component feeds.
// Components skipped because their feed lock was busy, or because the task
// ran out of time, stay pending and are the only ones retried.
type RecordCompletionTask struct {
	Task
	recorder *rotator.Recorder

	mu         sync.Mutex
	pending    rotator.Completion
	lastReport rotator.Report
}

func NewRecordCompletionTask(completion rotator.Completion, recorder *rotator.Recorder) *RecordCompletionTask {
	return &RecordCompletionTask{
		Task:     NewTask(TaskTypeRecordCompletion, completion.Build.ID),
		recorder: recorder,
		pending:  completion,
	}
}

func (t *RecordCompletionTask) Execute(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if len(t.pending.Results) == 0 {
		return nil
	}

	report := t.recorder.ProcessCompletion(ctx, t.pending)
	t.lastReport = report

	var retry []rotator.ComponentResult
	for i, c := range report.Components {
		if c.Retryable || c.Status == rotator.StatusCancelled {
			retry = append(retry, t.pending.Results[i])
		}
	}
	t.pending.Results = retry

	slog.Info("Task completed",
		"type", "RecordCompletion",
		"build", t.Subject,
		"duration", t.GetDuration(),
		"written", report.Count(rotator.StatusWritten),
		"unchanged", report.Count(rotator.StatusUnchanged),
		"skipped", report.Count(rotator.StatusSkipped),
		"pending", len(retry))

	if len(retry) > 0 {
		return fmt.Errorf("%d component feeds not updated, lock busy or task interrupted", len(retry))
	}

	return nil
}

// Pending returns the component results still to be written.
func (t *RecordCompletionTask) Pending() []rotator.ComponentResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]rotator.ComponentResult(nil), t.pending.Results...)
}

func (t *RecordCompletionTask) LastReport() rotator.Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastReport
}
