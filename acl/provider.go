// Package acl models security descriptors and their discretionary ACLs
// behind a platform-neutral provider interface. Decoding access masks into
// display labels is platform-independent; only descriptor retrieval differs
// per OS.
package acl

import (
	"context"
	"errors"
	"fmt"

	"github.com/karhu-io/aclscan/types"
)

// ErrNotExist reports that the path could not be found at all. Callers treat
// this as "no records", which is different from a descriptor query that fails
// on an existing path.
var ErrNotExist = errors.New("path does not exist")

// AceType is the raw ACE type tag from the descriptor.
type AceType byte

const (
	AceAllow AceType = 0
	AceDeny  AceType = 1
)

// EntryType maps the raw tag onto the record classification. Types other
// than allow and deny are rare (audit, alarm, object ACEs) and keep their
// raw numeric form rather than being folded into either bucket.
func (t AceType) EntryType() types.EntryType {
	switch t {
	case AceAllow:
		return types.EntryAllow
	case AceDeny:
		return types.EntryDeny
	default:
		return types.EntryType(fmt.Sprintf("Type(%d)", byte(t)))
	}
}

// Entry is one ACE with its principal already resolved. Principal falls back
// to the identifier's string form when name resolution fails.
type Entry struct {
	Principal string
	Type      AceType
	Mask      uint32
}

// Descriptor is the DACL-relevant slice of a security descriptor. NoDACL
// marks a null DACL, which is distinct from a present-but-empty one.
type Descriptor struct {
	Entries []Entry
	NoDACL  bool
}

// Provider retrieves security descriptors. One implementation per platform;
// tests use Static.
type Provider interface {
	// Descriptor returns the DACL view for path. ErrNotExist when the path
	// is missing; any other error means the path exists but the descriptor
	// query failed.
	Descriptor(ctx context.Context, path string) (*Descriptor, error)

	// Name identifies the provider for logs and metrics.
	Name() string
}

// Static is a fixed-response provider for tests.
type Static struct {
	Descriptors map[string]*Descriptor
	Errors      map[string]error
}

func (s *Static) Name() string { return "static" }

func (s *Static) Descriptor(_ context.Context, path string) (*Descriptor, error) {
	if err, ok := s.Errors[path]; ok {
		return nil, err
	}
	if d, ok := s.Descriptors[path]; ok {
		return d, nil
	}
	return nil, ErrNotExist
}
