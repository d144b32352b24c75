package acl

import (
	"fmt"
	"strings"
)

// Windows generic file rights. The decoder is shared by every provider, so
// non-Windows providers synthesize masks from these same bit patterns.
const (
	MaskDelete         uint32 = 0x00010000
	MaskFullControl    uint32 = 0x001F01FF
	MaskGenericRead    uint32 = 0x00120089
	MaskGenericWrite   uint32 = 0x00120116
	MaskGenericExecute uint32 = 0x001200A0
)

// Permission display labels.
const (
	LabelFullControl = "Full Control"
	LabelRead        = "Read"
	LabelWrite       = "Write"
	LabelExecute     = "Execute"
	LabelDelete      = "Delete"
)

// DecodeMask turns an access mask into display labels.
//
// A mask that contains every full-control bit decodes to exactly
// {Full Control}. Otherwise each of the four right groups contributes its
// label when any of its bits is set, in fixed order. A mask matching nothing
// decodes to a single synthetic label carrying the raw value.
func DecodeMask(mask uint32) []string {
	if mask&MaskFullControl == MaskFullControl {
		return []string{LabelFullControl}
	}

	var labels []string
	if mask&MaskGenericRead != 0 {
		labels = append(labels, LabelRead)
	}
	if mask&MaskGenericWrite != 0 {
		labels = append(labels, LabelWrite)
	}
	if mask&MaskGenericExecute != 0 {
		labels = append(labels, LabelExecute)
	}
	if mask&MaskDelete != 0 {
		labels = append(labels, LabelDelete)
	}

	if len(labels) == 0 {
		labels = append(labels, fmt.Sprintf("Special (Mask: %d)", mask))
	}
	return labels
}

// PermissionString is the comma-joined display form used in records.
func PermissionString(mask uint32) string {
	return strings.Join(DecodeMask(mask), ", ")
}
