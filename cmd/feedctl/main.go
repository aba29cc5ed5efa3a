package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/lysyi3m/config-rotator/app/cfg"
	"github.com/lysyi3m/config-rotator/app/feed"
	"github.com/lysyi3m/config-rotator/app/lock"
	"github.com/lysyi3m/config-rotator/app/rotator"
)

type globalOptions struct {
	FeedRoot         string        `long:"feed-root" env:"FEED_ROOT" default:"./feeds" description:"Directory holding one Atom feed per component"`
	BaseUrl          string        `long:"base-url" env:"BASE_URL" description:"Public base URL the feeds are served from"`
	LockTimeout      time.Duration `long:"lock-timeout" env:"LOCK_TIMEOUT" default:"30s" description:"Maximum wait for a feed lock"`
	LockPollInterval time.Duration `long:"lock-poll-interval" env:"LOCK_POLL_INTERVAL" default:"50ms" description:"Delay between attempts on a busy feed file lock"`
	NoFileLock       bool          `long:"no-file-lock" env:"NO_FILE_LOCK" description:"Disable cross-process file locks"`
	Debug            bool          `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

type app struct {
	ctx    context.Context
	opts   globalOptions
	stdout io.Writer
}

func (a *app) store() *feed.Store {
	return feed.NewStore(a.opts.FeedRoot, a.opts.BaseUrl)
}

type recordCommand struct {
	app   *app
	Event string `long:"event" short:"e" description:"YAML file describing the build completion"`
	Dir   string `long:"dir" short:"d" description:"Directory of YAML completion events, recorded in file name order"`
}

func (c *recordCommand) Execute(args []string) error {
	var events []rotator.EventFile
	switch {
	case c.Event != "" && c.Dir != "":
		return fmt.Errorf("--event and --dir are mutually exclusive")
	case c.Event != "":
		event, err := rotator.LoadEventFile(c.Event)
		if err != nil {
			return fmt.Errorf("failed to load event %s: %w", c.Event, err)
		}
		events = append(events, rotator.EventFile{Path: c.Event, Event: event})
	case c.Dir != "":
		loaded, err := rotator.LoadEventDir(c.Dir)
		if err != nil {
			return err
		}
		events = loaded
	default:
		return fmt.Errorf("one of --event or --dir is required")
	}

	guard := lock.NewGuard(lock.Options{
		Timeout:      c.app.opts.LockTimeout,
		PollInterval: c.app.opts.LockPollInterval,
		FileLock:     !c.app.opts.NoFileLock,
	})
	recorder := rotator.NewRecorder(c.app.store(), guard)

	total, notWritten := 0, 0
	for _, e := range events {
		completion, err := e.Event.Completion()
		if err != nil {
			return fmt.Errorf("invalid event %s: %w", e.Path, err)
		}

		report := recorder.ProcessCompletion(c.app.ctx, completion)

		fmt.Fprintf(c.app.stdout, "Build %s\n", report.BuildID)
		for _, r := range report.Components {
			line := fmt.Sprintf("  %-10s %s", r.Status, r.Identity)
			if r.Error != "" {
				line += ": " + r.Error
			}
			fmt.Fprintln(c.app.stdout, line)
		}

		total += len(report.Components)
		notWritten += len(report.Components) - report.Count(rotator.StatusWritten) - report.Count(rotator.StatusUnchanged)
	}

	if notWritten > 0 {
		return fmt.Errorf("%d of %d component feeds not updated", notWritten, total)
	}
	return nil
}

type showCommand struct {
	app       *app
	Namespace string `long:"namespace" short:"n" required:"true" description:"Feed namespace (PVob)"`
	Name      string `long:"name" required:"true" description:"Feed name (baseline)"`
}

func (c *showCommand) Execute(args []string) error {
	store := c.app.store()
	id := feed.Identity{Namespace: c.Namespace, Name: c.Name}

	path, err := store.ResolvePath(id)
	if err != nil {
		return err
	}

	doc, err := store.LoadPath(path, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.app.stdout, "%s (%s)\n", doc.Title, path)
	fmt.Fprintf(c.app.stdout, "  url:     %s\n", store.FeedURL(id))
	fmt.Fprintf(c.app.stdout, "  entries: %d\n", doc.Len())
	if !doc.Updated.IsZero() {
		fmt.Fprintf(c.app.stdout, "  updated: %s\n", doc.Updated.UTC().Format(time.RFC3339))
	}
	for _, e := range doc.Entries {
		fmt.Fprintf(c.app.stdout, "  %s  %s\n", e.Updated.UTC().Format(time.RFC3339), e.Title)
	}
	return nil
}

type sweepCommand struct {
	app    *app
	MaxAge time.Duration `long:"max-age" env:"TEMP_FILE_MAX_AGE" default:"1h" description:"Remove temporary feed files older than this (at least the lock timeout)"`
}

func (c *sweepCommand) Execute(args []string) error {
	if c.MaxAge < c.app.opts.LockTimeout {
		return fmt.Errorf("--max-age %s must not be shorter than --lock-timeout %s", c.MaxAge, c.app.opts.LockTimeout)
	}

	removed, err := c.app.store().SweepTemp(c.MaxAge)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.app.stdout, "Removed %d temporary files\n", removed)
	return nil
}

func newParser(a *app) *flags.Parser {
	parser := flags.NewParser(&a.opts, flags.Default)
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		cfg.SetupLogging(a.opts.Debug)
		if command == nil {
			return nil
		}
		return command.Execute(args)
	}

	parser.AddCommand("record", "Record a build completion",
		"Appends the build's result to the feed of every component in the event file.",
		&recordCommand{app: a})
	parser.AddCommand("show", "Show a component feed",
		"Prints the entries of one component feed.",
		&showCommand{app: a})
	parser.AddCommand("sweep", "Remove abandoned temporary files",
		"Deletes temporary feed files left behind by interrupted writers.",
		&sweepCommand{app: a})

	return parser
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	a := &app{ctx: ctx, stdout: stdout}
	_, err := newParser(a).ParseArgs(args)
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return
			}
			os.Exit(2)
		}
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
