package rotator

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ComponentResult is one (component, outcome, siblings) tuple of a build
// completion.
type ComponentResult struct {
	Component Component
	Outcome   Outcome
	Siblings  []Component
}

type Completion struct {
	Build   Build
	Results []ComponentResult
}

// NewCompletion records the same outcome for every component of a
// configuration; each component's siblings are all the others, in
// configuration order.
func NewCompletion(build Build, outcome Outcome, components []Component) Completion {
	results := make([]ComponentResult, 0, len(components))
	for i, c := range components {
		siblings := make([]Component, 0, len(components)-1)
		siblings = append(siblings, components[:i]...)
		siblings = append(siblings, components[i+1:]...)
		results = append(results, ComponentResult{Component: c, Outcome: outcome, Siblings: siblings})
	}
	return Completion{Build: build, Results: results}
}

// CompletionEvent is the wire and file form of a build completion.
type CompletionEvent struct {
	BuildID     string           `json:"build_id" yaml:"build_id"`
	Job         string           `json:"job" yaml:"job"`
	Number      int              `json:"number" yaml:"number"`
	URL         string           `json:"url" yaml:"url"`
	CompletedAt time.Time        `json:"completed_at" yaml:"completed_at"`
	Compatible  bool             `json:"compatible" yaml:"compatible"`
	Components  []ComponentEvent `json:"components" yaml:"components"`
}

type ComponentEvent struct {
	Kind           string `json:"kind" yaml:"kind"`
	Baseline       string `json:"baseline" yaml:"baseline"`
	PromotionLevel string `json:"promotion_level" yaml:"promotion_level"`
	Fixed          string `json:"fixed" yaml:"fixed"`
}

func (s CompletionEvent) Completion() (Completion, error) {
	buildID := strings.TrimSpace(s.BuildID)
	if buildID == "" {
		if s.Job == "" || s.Number <= 0 {
			return Completion{}, fmt.Errorf("build_id or job and number are required")
		}
		buildID = fmt.Sprintf("%s#%d", s.Job, s.Number)
	}

	if s.CompletedAt.IsZero() {
		return Completion{}, fmt.Errorf("completed_at is required")
	}

	if len(s.Components) == 0 {
		return Completion{}, fmt.Errorf("at least one component is required")
	}

	components := make([]Component, 0, len(s.Components))
	for i, ce := range s.Components {
		c, err := ce.Component()
		if err != nil {
			return Completion{}, fmt.Errorf("component %d: %w", i, err)
		}
		components = append(components, c)
	}

	outcome := Incompatible
	if s.Compatible {
		outcome = Compatible
	}

	build := Build{
		ID:          buildID,
		Job:         s.Job,
		Number:      s.Number,
		URL:         s.URL,
		CompletedAt: s.CompletedAt,
	}

	return NewCompletion(build, outcome, components), nil
}

func (s ComponentEvent) Component() (Component, error) {
	switch strings.ToLower(strings.TrimSpace(s.Kind)) {
	case "", KindClearCaseUCM:
		return ParseClearCaseUCMComponent(s.Baseline, s.PromotionLevel, s.Fixed)
	default:
		return nil, fmt.Errorf("unsupported component kind %q", s.Kind)
	}
}

func LoadEventFile(path string) (*CompletionEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var event CompletionEvent
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&event); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &event, nil
}

// EventFile is an event loaded from a spool directory.
type EventFile struct {
	Path  string
	Event *CompletionEvent
}

// LoadEventDir loads every .yaml and .yml event in dir, ordered by file
// name. A missing directory holds no events.
func LoadEventDir(dir string) ([]EventFile, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)
	slices.Sort(files)

	events := make([]EventFile, 0, len(files))
	for _, file := range files {
		event, err := LoadEventFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}
		events = append(events, EventFile{Path: file, Event: event})
	}

	return events, nil
}
