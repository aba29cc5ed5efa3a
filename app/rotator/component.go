package rotator

import (
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/config-rotator/app/feed"
)

type Outcome int

const (
	Incompatible Outcome = iota
	Compatible
)

func (o Outcome) String() string {
	if o == Compatible {
		return "compatible"
	}
	return "incompatible"
}

// Build identifies the build whose completion is being recorded. ID must be
// unique across every job writing to the same feed root.
type Build struct {
	ID          string
	Job         string
	Number      int
	URL         string
	CompletedAt time.Time
}

func (b Build) DisplayName() string {
	switch {
	case b.Job != "" && b.Number > 0:
		return fmt.Sprintf("%s #%d", b.Job, b.Number)
	case b.Number > 0:
		return fmt.Sprintf("#%d", b.Number)
	default:
		return b.ID
	}
}

// Component is one versioned unit of a configuration. Implementations
// decide how they are identified and how a result reads in their feed.
type Component interface {
	Identity() feed.Identity
	Kind() string
	String() string
	FeedEntryFor(build Build, outcome Outcome, siblings []Component) feed.Entry
}

func entryTitle(self Component, outcome Outcome, siblings []Component) string {
	name := self.Identity().Normalize().Name
	if len(siblings) == 0 {
		return fmt.Sprintf("%s is %s", name, outcome)
	}

	names := make([]string, 0, len(siblings))
	for _, s := range siblings {
		names = append(names, s.Identity().Normalize().Name)
	}
	return fmt.Sprintf("%s is %s with %s", name, outcome, strings.Join(names, ", "))
}
