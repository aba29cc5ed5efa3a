package feed

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed/atom"
)

type Parser struct {
	atomParser *atom.Parser
}

func NewParser() *Parser {
	return &Parser{
		atomParser: &atom.Parser{},
	}
}

// Run parses an Atom document previously written by Generator. Documents
// that are not well-formed, or lack ids and timestamps, are rejected.
func (p *Parser) Run(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("feed document is empty")
	}

	parsed, err := p.atomParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	if parsed.ID == "" {
		return nil, fmt.Errorf("feed has no id")
	}

	doc := &Document{
		ID:      parsed.ID,
		Title:   parsed.Title,
		Link:    p.selectLink(parsed.Links, "self"),
		Entries: make([]Entry, 0, len(parsed.Entries)),
	}

	if parsed.Updated != "" {
		updated, err := parseTime(strings.TrimSpace(parsed.Updated))
		if err != nil {
			return nil, fmt.Errorf("invalid feed updated timestamp %q: %w", parsed.Updated, err)
		}
		doc.Updated = updated
	}

	seen := make(map[string]bool, len(parsed.Entries))
	for i, item := range parsed.Entries {
		if item == nil {
			continue
		}
		if item.ID == "" {
			return nil, fmt.Errorf("entry %d has no id", i)
		}
		if seen[item.ID] {
			return nil, fmt.Errorf("entry id %s appears more than once", item.ID)
		}
		seen[item.ID] = true

		updated, err := parseTime(strings.TrimSpace(item.Updated))
		if err != nil {
			return nil, fmt.Errorf("invalid updated timestamp %q on entry %s: %w", item.Updated, item.ID, err)
		}

		doc.Entries = append(doc.Entries, Entry{
			ID:      item.ID,
			Title:   item.Title,
			Summary: item.Summary,
			Link:    p.selectLink(item.Links, "alternate"),
			Updated: updated,
		})
	}

	return doc, nil
}

func (p *Parser) selectLink(links []*atom.Link, rel string) string {
	var first string
	for _, link := range links {
		if link == nil || link.Href == "" {
			continue
		}
		if link.Rel == rel {
			return link.Href
		}
		if first == "" {
			first = link.Href
		}
	}
	return first
}
