// Package lock serialises read-modify-write cycles on feed files, both
// between goroutines of one process and between processes sharing a feed
// root.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/danjacques/gofslock/fslock"
	"golang.org/x/sync/semaphore"

	"github.com/lysyi3m/config-rotator/app/feed"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 50 * time.Millisecond

	lockSuffix = ".lock"
)

type Options struct {
	// Timeout bounds the total wait for both the in-process and the file lock.
	Timeout time.Duration
	// PollInterval is the delay between attempts on a file lock held by
	// another process.
	PollInterval time.Duration
	// FileLock enables the advisory lock on <path>.lock.
	FileLock bool
}

// TimeoutError is returned when the lock for Path was not acquired within
// the configured bound.
type TimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for lock on %s", e.Timeout, e.Path)
}

type pathLock struct {
	sem  *semaphore.Weighted
	refs int
}

type Guard struct {
	opts Options

	mu    sync.Mutex
	paths map[string]*pathLock
}

func NewGuard(opts Options) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Guard{
		opts:  opts,
		paths: make(map[string]*pathLock),
	}
}

// With runs fn while holding the exclusive lock for path. Calls for
// different paths do not contend.
func (g *Guard) With(ctx context.Context, path string, fn func() error) error {
	path = filepath.Clean(path)

	waitCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	pl := g.ref(path)
	defer g.unref(path)

	if err := pl.sem.Acquire(waitCtx, 1); err != nil {
		return g.waitError(ctx, path)
	}
	defer pl.sem.Release(1)

	if !g.opts.FileLock {
		return fn()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &feed.StorageError{Op: "create directory", Path: dir, Err: err}
	}

	return fslock.WithBlocking(path+lockSuffix, g.blocker(waitCtx, ctx, path), fn)
}

// Held reports how many callers currently hold or wait for path.
func (g *Guard) Held(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if pl, ok := g.paths[filepath.Clean(path)]; ok {
		return pl.refs
	}
	return 0
}

func (g *Guard) ref(path string) *pathLock {
	g.mu.Lock()
	defer g.mu.Unlock()

	pl, ok := g.paths[path]
	if !ok {
		pl = &pathLock{sem: semaphore.NewWeighted(1)}
		g.paths[path] = pl
	}
	pl.refs++
	return pl
}

func (g *Guard) unref(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pl := g.paths[path]
	pl.refs--
	if pl.refs == 0 {
		delete(g.paths, path)
	}
}

// blocker sleeps PollInterval between attempts on a file lock held by
// another process, giving up once waitCtx expires.
func (g *Guard) blocker(waitCtx, ctx context.Context, path string) fslock.Blocker {
	return func() error {
		timer := time.NewTimer(g.opts.PollInterval)
		defer timer.Stop()

		select {
		case <-waitCtx.Done():
			return g.waitError(ctx, path)
		case <-timer.C:
			return nil
		}
	}
}

func (g *Guard) waitError(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return &TimeoutError{Path: path, Timeout: g.opts.Timeout}
}
