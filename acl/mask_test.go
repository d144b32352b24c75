package acl

import (
	"testing"
)

func TestDecodeMask_FullControl(t *testing.T) {
	got := DecodeMask(MaskFullControl)
	if len(got) != 1 || got[0] != LabelFullControl {
		t.Errorf("DecodeMask(full control) = %v, want [Full Control]", got)
	}

	// Extra bits beyond full control must not add labels.
	got = DecodeMask(MaskFullControl | 0x01000000)
	if len(got) != 1 || got[0] != LabelFullControl {
		t.Errorf("DecodeMask(full control + extra) = %v, want [Full Control]", got)
	}
}

func TestDecodeMask_Groups(t *testing.T) {
	tests := []struct {
		name string
		mask uint32
		want []string
	}{
		{"read only", MaskGenericRead, []string{"Read"}},
		{"write only", MaskGenericWrite, []string{"Write"}},
		{"execute only", MaskGenericExecute, []string{"Execute"}},
		{"delete only", MaskDelete, []string{"Delete"}},
		{"read write", MaskGenericRead | MaskGenericWrite, []string{"Read", "Write"}},
		{"all four ordered", MaskGenericRead | MaskGenericWrite | MaskGenericExecute | MaskDelete, []string{"Read", "Write", "Execute", "Delete"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeMask(tt.mask)
			if len(got) != len(tt.want) {
				t.Fatalf("DecodeMask(%#x) = %v, want %v", tt.mask, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("label[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDecodeMask_Special(t *testing.T) {
	got := DecodeMask(0)
	if len(got) != 1 || got[0] != "Special (Mask: 0)" {
		t.Errorf("DecodeMask(0) = %v, want [Special (Mask: 0)]", got)
	}

	// SYNCHRONIZE alone overlaps the generic groups, so pick a bit that
	// does not: WRITE_OWNER (0x80000).
	got = DecodeMask(0x80000)
	if len(got) != 1 || got[0] != "Special (Mask: 524288)" {
		t.Errorf("DecodeMask(0x80000) = %v, want [Special (Mask: 524288)]", got)
	}
}

func TestPermissionString(t *testing.T) {
	got := PermissionString(MaskGenericRead | MaskDelete)
	if got != "Read, Delete" {
		t.Errorf("PermissionString = %q, want %q", got, "Read, Delete")
	}
}

func TestAceType_EntryType(t *testing.T) {
	if AceAllow.EntryType() != "Allow" {
		t.Errorf("AceAllow = %v", AceAllow.EntryType())
	}
	if AceDeny.EntryType() != "Deny" {
		t.Errorf("AceDeny = %v", AceDeny.EntryType())
	}
	if AceType(2).EntryType() != "Type(2)" {
		t.Errorf("audit ace = %v", AceType(2).EntryType())
	}
}
