package feed

import (
	"time"

	"github.com/google/uuid"
)

// Feed document types

type Entry struct {
	ID      string
	Title   string
	Summary string
	Link    string // originating build
	Updated time.Time
}

// Document is an Atom feed for a single component. Entries are kept in the
// order they were merged, oldest first.
type Document struct {
	ID      string
	Title   string
	Link    string
	Updated time.Time
	Entries []Entry
}

func (d *Document) Has(entryID string) bool {
	for _, e := range d.Entries {
		if e.ID == entryID {
			return true
		}
	}
	return false
}

func (d *Document) Len() int {
	return len(d.Entries)
}

func (d *Document) Clone() *Document {
	c := *d
	c.Entries = make([]Entry, len(d.Entries))
	copy(c.Entries, d.Entries)
	return &c
}

// FeedInfo summarises a feed file found below the store root.
type FeedInfo struct {
	Identity Identity  `json:"identity"`
	Path     string    `json:"path"`
	Entries  int       `json:"entries"`
	Updated  time.Time `json:"updated"`
	Error    string    `json:"error,omitempty"`
}

// EntryID derives the entry id for one build's result on one component.
// Replaying the same build yields the same id.
func EntryID(buildID string, id Identity) string {
	n := id.Normalize()
	return uuid.NewSHA1(idNamespace, []byte("entry\x00"+buildID+"\x00"+n.Namespace+"\x00"+n.Name)).URN()
}
