package feed

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// idNamespace scopes every UUIDv5 generated for feeds and entries.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/lysyi3m/config-rotator/feeds"))

// Identity addresses one component feed. Name is unique within Namespace
// (a PVob for ClearCase UCM).
type Identity struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
}

func (i Identity) Normalize() Identity {
	return Identity{
		Namespace: norm.NFC.String(strings.TrimSpace(i.Namespace)),
		Name:      norm.NFC.String(strings.TrimSpace(i.Name)),
	}
}

// Validate reports whether both segments can be used as a single path
// element below the feed root.
func (i Identity) Validate() error {
	if err := validateSegment("namespace", i.Namespace); err != nil {
		return err
	}
	return validateSegment("name", i.Name)
}

func (i Identity) String() string {
	return fmt.Sprintf("%s@\\%s", i.Name, i.Namespace)
}

// FeedID is stable for the lifetime of the component, independent of where
// the feed is served from.
func (i Identity) FeedID() string {
	n := i.Normalize()
	return uuid.NewSHA1(idNamespace, []byte("feed\x00"+n.Namespace+"\x00"+n.Name)).URN()
}

func validateSegment(field, value string) error {
	switch {
	case value == "":
		return fmt.Errorf("%w: %s is empty", ErrInvalidIdentity, field)
	case value == "." || value == "..":
		return fmt.Errorf("%w: %s %q is a relative path element", ErrInvalidIdentity, field, value)
	case strings.HasPrefix(value, "."):
		return fmt.Errorf("%w: %s %q starts with a dot", ErrInvalidIdentity, field, value)
	case strings.ContainsAny(value, "/\\\x00"):
		return fmt.Errorf("%w: %s %q contains a path separator", ErrInvalidIdentity, field, value)
	}
	return nil
}
