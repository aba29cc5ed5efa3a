package feed

import (
	"errors"
	"fmt"
)

var ErrInvalidIdentity = errors.New("invalid component identity")

// CorruptFeedError means an existing feed file could not be parsed. The file
// is left in place for inspection.
type CorruptFeedError struct {
	Path string
	Err  error
}

func (e *CorruptFeedError) Error() string {
	return fmt.Sprintf("corrupt feed %s: %v", e.Path, e.Err)
}

func (e *CorruptFeedError) Unwrap() error {
	return e.Err
}

// StorageError wraps a filesystem failure while reading or writing a feed.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// DuplicateEntryError is returned by Merge when the entry id is already
// present in the document.
type DuplicateEntryError struct {
	ID string
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("entry %s already exists in feed", e.ID)
}
