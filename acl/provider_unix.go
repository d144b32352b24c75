//go:build !windows

package acl

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"syscall"

	goacl "github.com/joshlf/go-acl"
)

type osProvider struct{}

// NewOSProvider returns the POSIX descriptor provider. It reads extended
// POSIX ACLs where the filesystem supports them and falls back to classic
// owner/group/other mode bits elsewhere. Rights are synthesized into the
// same generic masks the decoder expects on Windows so records look uniform
// across platforms.
func NewOSProvider() Provider { return osProvider{} }

func (osProvider) Name() string { return "posix" }

func (osProvider) Descriptor(ctx context.Context, path string) (*Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, ErrNotExist
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if entries, err := goacl.Get(path); err == nil && len(entries) > 0 {
		return descriptorFromACL(info, entries), nil
	}

	// No extended ACL support on this filesystem: degrade to mode bits.
	return descriptorFromMode(info), nil
}

func descriptorFromACL(info os.FileInfo, entries goacl.ACL) *Descriptor {
	desc := &Descriptor{}
	for _, e := range entries {
		var principal string
		switch e.Tag {
		case goacl.TagUserObj:
			principal = ownerName(info)
		case goacl.TagGroupObj:
			principal = groupName(info)
		case goacl.TagUser:
			principal = lookupUser(e.Qualifier)
		case goacl.TagGroup:
			principal = lookupGroup(e.Qualifier)
		case goacl.TagOther:
			principal = "everyone"
		default:
			// TagMask bounds effective rights but grants nothing itself.
			continue
		}

		mask := maskFromPerms(uint32(e.Perms.Perm()) & 7)
		if mask == 0 {
			continue
		}
		desc.Entries = append(desc.Entries, Entry{Principal: principal, Type: AceAllow, Mask: mask})
	}
	return desc
}

func descriptorFromMode(info os.FileInfo) *Descriptor {
	perm := uint32(info.Mode().Perm())
	desc := &Descriptor{}

	classes := []struct {
		principal string
		bits      uint32
	}{
		{ownerName(info), perm >> 6 & 7},
		{groupName(info), perm >> 3 & 7},
		{"everyone", perm & 7},
	}
	for _, c := range classes {
		if mask := maskFromPerms(c.bits); mask != 0 {
			desc.Entries = append(desc.Entries, Entry{Principal: c.principal, Type: AceAllow, Mask: mask})
		}
	}
	return desc
}

// maskFromPerms maps an rwx triplet onto the generic Windows rights the
// shared decoder understands. Full rwx becomes the full-control pattern so
// owner entries decode the same way an NTFS Full Control grant does.
func maskFromPerms(bits uint32) uint32 {
	if bits&7 == 7 {
		return MaskFullControl
	}
	var mask uint32
	if bits&4 != 0 {
		mask |= MaskGenericRead
	}
	if bits&2 != 0 {
		mask |= MaskGenericWrite | MaskDelete
	}
	if bits&1 != 0 {
		mask |= MaskGenericExecute
	}
	return mask
}

func ownerName(info os.FileInfo) string {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return lookupUser(strconv.FormatUint(uint64(stat.Uid), 10))
	}
	return "owner"
}

func groupName(info os.FileInfo) string {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return lookupGroup(strconv.FormatUint(uint64(stat.Gid), 10))
	}
	return "group"
}

func lookupUser(uid string) string {
	if u, err := user.LookupId(uid); err == nil {
		return u.Username
	}
	return fmt.Sprintf("uid:%s", uid)
}

func lookupGroup(gid string) string {
	if g, err := user.LookupGroupId(gid); err == nil {
		return "group:" + g.Name
	}
	return fmt.Sprintf("gid:%s", gid)
}
