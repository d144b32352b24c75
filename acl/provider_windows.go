//go:build windows

package acl

import (
	"context"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

type osProvider struct{}

// NewOSProvider returns the Windows descriptor provider backed by the
// security API (GetNamedSecurityInfo).
func NewOSProvider() Provider { return osProvider{} }

func (osProvider) Name() string { return "windows" }

func (osProvider) Descriptor(ctx context.Context, path string) (*Descriptor, error) {
	if _, err := os.Stat(path); err != nil {
		// Anything that fails the existence check is "not there" for the
		// caller; only failures past this point count as descriptor errors.
		return nil, ErrNotExist
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sd, err := windows.GetNamedSecurityInfo(path, windows.SE_FILE_OBJECT, windows.DACL_SECURITY_INFORMATION)
	if err != nil {
		return nil, fmt.Errorf("get security info for %s: %w", path, err)
	}

	dacl, _, err := sd.DACL()
	if err != nil {
		return nil, fmt.Errorf("read dacl for %s: %w", path, err)
	}
	if dacl == nil {
		return &Descriptor{NoDACL: true}, nil
	}

	desc := &Descriptor{}
	for i := uint32(0); i < uint32(dacl.AceCount); i++ {
		var ace *windows.ACCESS_ALLOWED_ACE
		if err := windows.GetAce(dacl, i, &ace); err != nil {
			return nil, fmt.Errorf("read ace %d for %s: %w", i, path, err)
		}

		// Allowed and denied ACEs share this layout; the SID trails the
		// fixed header in both.
		sid := (*windows.SID)(unsafe.Pointer(&ace.SidStart))
		desc.Entries = append(desc.Entries, Entry{
			Principal: lookupPrincipal(sid),
			Type:      AceType(ace.Header.AceType),
			Mask:      uint32(ace.Mask),
		})
	}
	return desc, nil
}

// lookupPrincipal resolves a SID to DOMAIN\name, falling back to the SID
// string when the account is unknown (deleted accounts, foreign domains).
func lookupPrincipal(sid *windows.SID) string {
	name, domain, _, err := sid.LookupAccount("")
	if err != nil || name == "" {
		return sid.String()
	}
	if domain != "" {
		return domain + `\` + name
	}
	return name
}
