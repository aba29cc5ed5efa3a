package rotator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lysyi3m/config-rotator/app/feed"
)

const KindClearCaseUCM = "clearcase-ucm"

type PromotionLevel string

const (
	PromotionRejected PromotionLevel = "REJECTED"
	PromotionInitial  PromotionLevel = "INITIAL"
	PromotionBuilt    PromotionLevel = "BUILT"
	PromotionTested   PromotionLevel = "TESTED"
	PromotionReleased PromotionLevel = "RELEASED"
)

var promotionLevels = map[string]PromotionLevel{
	"REJECTED": PromotionRejected,
	"INITIAL":  PromotionInitial,
	"BUILT":    PromotionBuilt,
	"TESTED":   PromotionTested,
	"RELEASED": PromotionReleased,
}

func ParsePromotionLevel(s string) (PromotionLevel, error) {
	if pl, ok := promotionLevels[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return pl, nil
	}
	return "", fmt.Errorf("unknown promotion level %q", s)
}

var (
	blankPattern = regexp.MustCompile(`^\s*$`)
	fixedPattern = regexp.MustCompile(`^(?i)fixed*$`)
	truePattern  = regexp.MustCompile(`^(?i)true*$`)
)

// ParseFixed reports whether a component is pinned. "manual", blank, and
// anything spelled like "fixed" or "true" count as pinned.
func ParseFixed(s string) bool {
	return strings.EqualFold(s, "manual") ||
		blankPattern.MatchString(s) ||
		fixedPattern.MatchString(s) ||
		truePattern.MatchString(s)
}

// ClearCaseUCMComponent is a UCM baseline in a configuration. Its feed is
// keyed by the baseline name within its PVob.
type ClearCaseUCMComponent struct {
	Baseline       string
	PVob           string
	PromotionLevel PromotionLevel
	Fixed          bool
}

var _ Component = (*ClearCaseUCMComponent)(nil)

// ParseClearCaseUCMComponent builds a component from its textual form. The
// baseline is a fully qualified selector such as "baseline:CR1-1@\myPVob".
func ParseClearCaseUCMComponent(baseline, plevel, fixed string) (*ClearCaseUCMComponent, error) {
	name, pvob, err := parseBaselineSelector(baseline)
	if err != nil {
		return nil, err
	}

	level, err := ParsePromotionLevel(plevel)
	if err != nil {
		return nil, err
	}

	return &ClearCaseUCMComponent{
		Baseline:       name,
		PVob:           pvob,
		PromotionLevel: level,
		Fixed:          ParseFixed(fixed),
	}, nil
}

func parseBaselineSelector(s string) (string, string, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "baseline:")

	name, pvob, ok := strings.Cut(s, "@")
	if !ok {
		return "", "", fmt.Errorf("baseline %q is not of the form name@\\pvob", s)
	}
	name = strings.TrimSpace(name)
	pvob = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(pvob), `\/`))

	if name == "" || pvob == "" {
		return "", "", fmt.Errorf("baseline %q is not of the form name@\\pvob", s)
	}
	return name, pvob, nil
}

func (c *ClearCaseUCMComponent) Identity() feed.Identity {
	return feed.Identity{Namespace: c.PVob, Name: c.Baseline}.Normalize()
}

func (c *ClearCaseUCMComponent) Kind() string {
	return KindClearCaseUCM
}

func (c *ClearCaseUCMComponent) String() string {
	return fmt.Sprintf("%s@\\%s@%s(%t)", c.Baseline, c.PVob, c.PromotionLevel, c.Fixed)
}

func (c *ClearCaseUCMComponent) FeedEntryFor(build Build, outcome Outcome, siblings []Component) feed.Entry {
	var summary strings.Builder
	fmt.Fprintf(&summary, "Build %s found baseline %s (%s", build.DisplayName(), c.Identity(), c.PromotionLevel)
	if c.Fixed {
		summary.WriteString(", fixed")
	}
	fmt.Fprintf(&summary, ") %s", outcome)

	if len(siblings) > 0 {
		parts := make([]string, 0, len(siblings))
		for _, s := range siblings {
			parts = append(parts, describe(s))
		}
		fmt.Fprintf(&summary, " with: %s", strings.Join(parts, ", "))
	}
	summary.WriteString(".")

	return feed.Entry{
		ID:      feed.EntryID(build.ID, c.Identity()),
		Title:   entryTitle(c, outcome, siblings),
		Summary: summary.String(),
		Link:    build.URL,
		Updated: build.CompletedAt.UTC(),
	}
}

func describe(c Component) string {
	if cc, ok := c.(*ClearCaseUCMComponent); ok {
		return fmt.Sprintf("%s (%s)", cc.Identity(), cc.PromotionLevel)
	}
	return c.Identity().Normalize().String()
}
