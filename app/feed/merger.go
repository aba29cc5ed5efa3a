package feed

import (
	"fmt"
	"time"
)

// Merge appends entry to a copy of doc. The input document is never
// modified, and no existing entry is touched.
func Merge(doc *Document, entry Entry) (*Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("cannot merge into nil document")
	}
	if entry.ID == "" {
		return nil, fmt.Errorf("entry id is required")
	}
	if doc.Has(entry.ID) {
		return nil, &DuplicateEntryError{ID: entry.ID}
	}

	merged := doc.Clone()
	merged.Entries = append(merged.Entries, entry)
	merged.Updated = latest(merged.Entries)

	return merged, nil
}

func latest(entries []Entry) time.Time {
	var newest time.Time
	for _, e := range entries {
		if e.Updated.After(newest) {
			newest = e.Updated
		}
	}
	return newest
}
