package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Feed storage
	FeedRoot         string        `long:"feed-root" env:"FEED_ROOT" default:"./feeds" description:"Directory holding one Atom feed per component, as <namespace>/<name>.xml"`
	BaseUrl          string        `long:"base-url" env:"BASE_URL" description:"Public base URL the feeds are served from (e.g., https://ci.example.com/config-rotator)"`
	LockTimeout      time.Duration `long:"lock-timeout" env:"LOCK_TIMEOUT" default:"30s" description:"Maximum wait for a feed lock before the component is skipped"`
	LockPollInterval time.Duration `long:"lock-poll-interval" env:"LOCK_POLL_INTERVAL" default:"50ms" description:"Delay between attempts on a feed file lock held by another process"`
	NoFileLock       bool          `long:"no-file-lock" env:"NO_FILE_LOCK" description:"Disable cross-process file locks (only safe with a single writer process)"`
	TempFileMaxAge   time.Duration `long:"temp-file-max-age" env:"TEMP_FILE_MAX_AGE" default:"1h" description:"Age after which abandoned temporary feed files are removed (at least the lock timeout)"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers recording build completions"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Interval in seconds between temporary file sweeps"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		FeedRoot:          raw.FeedRoot,
		BaseUrl:           raw.BaseUrl,
		LockTimeout:       raw.LockTimeout,
		LockPollInterval:  raw.LockPollInterval,
		FileLock:          !raw.NoFileLock,
		TempFileMaxAge:    raw.TempFileMaxAge,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// SetupLogging installs the default slog handler at the configured level.
func SetupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func (c *Cfg) validate() error {
	if c.FeedRoot == "" {
		return fmt.Errorf("feed root is required")
	}

	positiveFields := map[string]time.Duration{
		"lock timeout":       c.LockTimeout,
		"lock poll interval": c.LockPollInterval,
		"temp file max age":  c.TempFileMaxAge,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	// Sweeping runs outside the feed locks; a writer holds its temporary
	// file no longer than it may wait for and hold the lock.
	if c.TempFileMaxAge < c.LockTimeout {
		return fmt.Errorf("temp file max age (%s) must not be shorter than lock timeout (%s)", c.TempFileMaxAge, c.LockTimeout)
	}

	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
