package feed

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	feedExt       = ".xml"
	tempMarker    = feedExt + ".tmp-"
	feedFileMode  = 0o644
	feedDirMode   = 0o755
	feedURLPrefix = "feeds"
)

// Store maps component identities to feed files below a root directory and
// reads and writes those files.
type Store struct {
	root      string
	baseURL   string
	parser    *Parser
	generator *Generator

	now     func() time.Time
	rename  func(oldpath, newpath string) error
	syncDir func(dir string) error
}

func NewStore(root, baseURL string) *Store {
	return &Store{
		root:      root,
		baseURL:   strings.TrimRight(baseURL, "/"),
		parser:    NewParser(),
		generator: NewGenerator(),
		now:       time.Now,
		rename:    os.Rename,
		syncDir:   syncDir,
	}
}

func (s *Store) Root() string {
	return s.root
}

// ResolvePath returns <root>/<namespace>/<name>.xml for the normalised
// identity.
func (s *Store) ResolvePath(id Identity) (string, error) {
	n := id.Normalize()
	if err := n.Validate(); err != nil {
		return "", err
	}
	return filepath.Join(s.root, n.Namespace, n.Name+feedExt), nil
}

func (s *Store) FeedURL(id Identity) string {
	n := id.Normalize()
	path := feedURLPrefix + "/" + url.PathEscape(n.Namespace) + "/" + url.PathEscape(n.Name) + feedExt
	if s.baseURL == "" {
		return "/" + path
	}
	return s.baseURL + "/" + path
}

// NewDocument returns the empty feed a component starts with.
func (s *Store) NewDocument(id Identity) *Document {
	return &Document{
		ID:      id.FeedID(),
		Title:   id.Normalize().String(),
		Link:    s.FeedURL(id),
		Updated: s.now().UTC(),
		Entries: []Entry{},
	}
}

func (s *Store) Load(id Identity) (*Document, error) {
	path, err := s.ResolvePath(id)
	if err != nil {
		return nil, err
	}
	return s.LoadPath(path, id)
}

// LoadPath reads the feed at path. A missing file yields a new empty
// document for id; anything that exists but does not parse is reported as
// CorruptFeedError and never replaced by an empty document.
func (s *Store) LoadPath(path string, id Identity) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.NewDocument(id), nil
		}
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}

	doc, err := s.parser.Run(data)
	if err != nil {
		return nil, &CorruptFeedError{Path: path, Err: err}
	}

	return doc, nil
}

// Save writes doc to a temporary file next to path and renames it into
// place, so readers see either the previous or the new document.
func (s *Store) Save(doc *Document, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, feedDirMode); err != nil {
		return &StorageError{Op: "create directory", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+strings.TrimSuffix(filepath.Base(path), feedExt)+tempMarker+"*")
	if err != nil {
		return &StorageError{Op: "create temporary file", Path: dir, Err: err}
	}
	tmpPath := tmp.Name()

	if err := s.writeTemp(tmp, doc); err != nil {
		os.Remove(tmpPath)
		return &StorageError{Op: "write", Path: tmpPath, Err: err}
	}

	if err := s.rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &StorageError{Op: "rename", Path: path, Err: err}
	}

	// The rename is durable only once the directory entry is on disk.
	if err := s.syncDir(dir); err != nil {
		return &StorageError{Op: "sync directory", Path: dir, Err: err}
	}

	slog.Debug("Feed saved", "path", path, "entries", doc.Len())

	return nil
}

func (s *Store) writeTemp(tmp *os.File, doc *Document) error {
	if _, err := tmp.Write(s.generator.Run(doc)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(feedFileMode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	return tmp.Close()
}

// List reports every feed file below the root. Feeds that fail to parse are
// included with Error set.
func (s *Store) List() ([]FeedInfo, error) {
	var feeds []FeedInfo

	namespaces, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return feeds, nil
		}
		return nil, &StorageError{Op: "read directory", Path: s.root, Err: err}
	}

	for _, ns := range namespaces {
		if !ns.IsDir() || strings.HasPrefix(ns.Name(), ".") {
			continue
		}

		nsDir := filepath.Join(s.root, ns.Name())
		files, err := os.ReadDir(nsDir)
		if err != nil {
			return nil, &StorageError{Op: "read directory", Path: nsDir, Err: err}
		}

		for _, f := range files {
			name := f.Name()
			if f.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, feedExt) {
				continue
			}

			id := Identity{Namespace: ns.Name(), Name: strings.TrimSuffix(name, feedExt)}
			info := FeedInfo{Identity: id, Path: filepath.Join(nsDir, name)}

			doc, err := s.LoadPath(info.Path, id)
			if err != nil {
				info.Error = err.Error()
			} else {
				info.Entries = doc.Len()
				info.Updated = doc.Updated
			}

			feeds = append(feeds, info)
		}
	}

	return feeds, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

// SweepTemp removes temporary files left behind by writers that died
// between creating and renaming them.
func (s *Store) SweepTemp(olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	removed := 0

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), ".") || !strings.Contains(d.Name(), tempMarker) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		slog.Debug("Removed abandoned temporary feed file", "path", path)
		removed++
		return nil
	})
	if err != nil {
		return removed, &StorageError{Op: "sweep", Path: s.root, Err: err}
	}

	return removed, nil
}
