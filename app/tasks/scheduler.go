package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/config-rotator/app/cfg"
	"github.com/lysyi3m/config-rotator/app/feed"
)

const (
	queueSize      = 300
	taskTimeout    = 5 * time.Minute
	maxRetryDelay  = 30 * time.Second
	baseRetryDelay = time.Second
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	store          *feed.Store
	tempFileMaxAge time.Duration
	interval       time.Duration
	workerCount    int
	retryDelay     time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	taskQueue      chan TaskInterface
}

func NewScheduler(store *feed.Store) TaskSchedulerInterface {
	cfg := cfg.Get()
	return newScheduler(store,
		time.Duration(cfg.SchedulerInterval)*time.Second,
		cfg.WorkerCount,
		cfg.TempFileMaxAge)
}

func newScheduler(store *feed.Store, interval time.Duration, workerCount int, tempFileMaxAge time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:          store,
		tempFileMaxAge: tempFileMaxAge,
		interval:       interval,
		workerCount:    workerCount,
		retryDelay:     baseRetryDelay,
		ctx:            ctx,
		cancel:         cancel,
		taskQueue:      make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueSweep()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueSweep()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) QueueLength() int {
	return len(s.taskQueue)
}

func (s *Scheduler) enqueueSweep() {
	if s.store == nil {
		return
	}
	task := NewSweepTempFilesTask(s.store, s.tempFileMaxAge)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue SweepTempFilesTask", "root", s.store.Root(), "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := s.retryDelay * time.Duration(1<<uint(task.GetRetryCount()-1))
			if retryDelay > maxRetryDelay {
				retryDelay = maxRetryDelay
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()

				timer := time.NewTimer(retryDelay)
				defer timer.Stop()

				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				case <-timer.C:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
