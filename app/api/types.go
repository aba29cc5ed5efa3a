package api

import (
	"time"

	"github.com/lysyi3m/config-rotator/app/feed"
	"github.com/lysyi3m/config-rotator/app/rotator"
	"github.com/lysyi3m/config-rotator/app/tasks"
)

type FeedStoreInterface interface {
	Root() string
	ResolvePath(id feed.Identity) (string, error)
	FeedURL(id feed.Identity) string
	List() ([]feed.FeedInfo, error)
}

var _ FeedStoreInterface = (*feed.Store)(nil)

type Handler struct {
	store     FeedStoreInterface
	recorder  *rotator.Recorder
	scheduler tasks.TaskSchedulerInterface
	version   string
	now       func() time.Time
}
