package cfg

import "time"

type Cfg struct {
	// Feed storage
	FeedRoot         string
	BaseUrl          string
	LockTimeout      time.Duration
	LockPollInterval time.Duration
	FileLock         bool
	TempFileMaxAge   time.Duration

	// Application configuration
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
