package rotator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/config-rotator/app/feed"
	"github.com/lysyi3m/config-rotator/app/lock"
)

type Status string

const (
	StatusWritten   Status = "written"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// FeedLocker serialises work on a single feed path.
type FeedLocker interface {
	With(ctx context.Context, path string, fn func() error) error
}

var _ FeedLocker = (*lock.Guard)(nil)

type ComponentReport struct {
	Identity feed.Identity `json:"identity"`
	Path     string        `json:"path,omitempty"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`

	// Retryable is set when the update was skipped for lock contention only.
	Retryable bool  `json:"retryable,omitempty"`
	Err       error `json:"-"`
}

// Report holds one ComponentReport per result of the completion, in the
// same order.
type Report struct {
	BuildID    string            `json:"build_id"`
	Components []ComponentReport `json:"components"`
}

func (r Report) Count(status Status) int {
	n := 0
	for _, c := range r.Components {
		if c.Status == status {
			n++
		}
	}
	return n
}

type Recorder struct {
	store *feed.Store
	guard FeedLocker
}

func NewRecorder(store *feed.Store, guard FeedLocker) *Recorder {
	return &Recorder{
		store: store,
		guard: guard,
	}
}

// ProcessCompletion writes one entry per component result. Each component
// is handled on its own: a failure is logged and reported, and processing
// continues with the next component. Components already written stay
// written when ctx is cancelled part way through.
func (r *Recorder) ProcessCompletion(ctx context.Context, c Completion) Report {
	start := time.Now()
	report := Report{
		BuildID:    c.Build.ID,
		Components: make([]ComponentReport, 0, len(c.Results)),
	}

	for _, result := range c.Results {
		if err := ctx.Err(); err != nil {
			report.Components = append(report.Components, ComponentReport{
				Identity: result.Component.Identity(),
				Status:   StatusCancelled,
				Error:    err.Error(),
				Err:      err,
			})
			continue
		}
		report.Components = append(report.Components, r.record(ctx, c.Build, result))
	}

	slog.Info("Completion processed",
		"build", c.Build.ID,
		"duration", time.Since(start),
		"components", len(c.Results),
		"written", report.Count(StatusWritten),
		"unchanged", report.Count(StatusUnchanged),
		"skipped", report.Count(StatusSkipped),
		"cancelled", report.Count(StatusCancelled))

	return report
}

func (r *Recorder) record(ctx context.Context, build Build, result ComponentResult) (cr ComponentReport) {
	id := result.Component.Identity()
	cr.Identity = id

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic while updating feed: %v", p)
			slog.Error("Feed update failed", "build", build.ID, "component", id.String(), "error", err)
			cr.Status = StatusSkipped
			cr.Error = err.Error()
			cr.Err = err
		}
	}()

	path, err := r.store.ResolvePath(id)
	if err != nil {
		return r.fail(cr, build, err)
	}
	cr.Path = path

	entry := result.Component.FeedEntryFor(build, result.Outcome, result.Siblings)

	err = r.guard.With(ctx, path, func() error {
		doc, err := r.store.LoadPath(path, id)
		if err != nil {
			return err
		}

		merged, err := feed.Merge(doc, entry)
		var dup *feed.DuplicateEntryError
		if errors.As(err, &dup) {
			slog.Debug("Entry already recorded, feed unchanged", "build", build.ID, "component", id.String(), "entry", dup.ID)
			cr.Status = StatusUnchanged
			return nil
		}
		if err != nil {
			return err
		}

		if err := r.store.Save(merged, path); err != nil {
			return err
		}
		cr.Status = StatusWritten
		return nil
	})
	if err != nil {
		return r.fail(cr, build, err)
	}

	slog.Debug("Feed updated", "build", build.ID, "component", id.String(), "status", string(cr.Status), "path", path)
	return cr
}

func (r *Recorder) fail(cr ComponentReport, build Build, err error) ComponentReport {
	cr.Status = StatusSkipped
	cr.Error = err.Error()
	cr.Err = err

	var (
		corrupt *feed.CorruptFeedError
		storage *feed.StorageError
		timeout *lock.TimeoutError
	)

	switch {
	case errors.As(err, &timeout):
		cr.Retryable = true
		slog.Warn("Feed lock not acquired, skipping component", "build", build.ID, "component", cr.Identity.String(), "path", cr.Path, "timeout", timeout.Timeout)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		cr.Status = StatusCancelled
		slog.Warn("Feed update cancelled", "build", build.ID, "component", cr.Identity.String(), "error", err)
	case errors.As(err, &corrupt):
		slog.Error("Feed is corrupt, leaving it untouched", "build", build.ID, "component", cr.Identity.String(), "path", corrupt.Path, "error", corrupt.Err)
	case errors.As(err, &storage):
		slog.Error("Feed storage failed", "build", build.ID, "component", cr.Identity.String(), "op", storage.Op, "path", storage.Path, "error", storage.Err)
	case errors.Is(err, feed.ErrInvalidIdentity):
		slog.Error("Invalid component identity", "build", build.ID, "component", cr.Identity.String(), "error", err)
	default:
		slog.Error("Feed update failed", "build", build.ID, "component", cr.Identity.String(), "error", err)
	}

	return cr
}
