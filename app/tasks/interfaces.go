package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the HTTP adapter to hand build completions to the worker pool, and
// by main to manage its lifecycle.
// Example usage:
//
//	scheduler := NewScheduler(store)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewRecordCompletionTask(completion, recorder))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	QueueLength() int
}
