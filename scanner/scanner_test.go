package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/karhu-io/aclscan/acl"
	"github.com/karhu-io/aclscan/types"
)

func newTestScanner(t *testing.T, provider acl.Provider, opts ...Option) *Scanner {
	t.Helper()
	s, err := New(provider, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestScanFolder_DecodesEntries(t *testing.T) {
	provider := &acl.Static{
		Descriptors: map[string]*acl.Descriptor{
			"/srv/data": {
				Entries: []acl.Entry{
					{Principal: "CORP\\alice", Type: acl.AceAllow, Mask: acl.MaskFullControl},
					{Principal: "CORP\\interns", Type: acl.AceDeny, Mask: acl.MaskGenericWrite},
				},
			},
		},
	}
	s := newTestScanner(t, provider)

	records := s.ScanFolder(context.Background(), "/srv/data")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	if records[0].Principal != "CORP\\alice" || records[0].EntryType != types.EntryAllow || records[0].Permissions != "Full Control" {
		t.Errorf("first record = %+v", records[0])
	}
	if records[1].EntryType != types.EntryDeny || records[1].Permissions != "Write" {
		t.Errorf("second record = %+v", records[1])
	}
	for _, r := range records {
		if r.FolderPath != "/srv/data" {
			t.Errorf("FolderPath = %q, want /srv/data", r.FolderPath)
		}
		if r.Permissions == "" {
			t.Error("Permissions must be non-empty")
		}
	}
}

func TestScanFolder_MissingPath(t *testing.T) {
	s := newTestScanner(t, &acl.Static{})

	records := s.ScanFolder(context.Background(), "/does/not/exist")
	if len(records) != 0 {
		t.Errorf("missing path should yield no records, got %d", len(records))
	}
}

func TestScanFolder_NullDACL(t *testing.T) {
	provider := &acl.Static{
		Descriptors: map[string]*acl.Descriptor{
			"/srv/open": {NoDACL: true},
		},
	}
	s := newTestScanner(t, provider)

	records := s.ScanFolder(context.Background(), "/srv/open")
	if len(records) != 0 {
		t.Errorf("null DACL should yield no records, got %d", len(records))
	}
}

func TestScanFolder_DescriptorFailure(t *testing.T) {
	provider := &acl.Static{
		Errors: map[string]error{
			"/srv/locked": errors.New("access denied"),
		},
	}
	s := newTestScanner(t, provider)

	records := s.ScanFolder(context.Background(), "/srv/locked")
	if len(records) != 1 {
		t.Fatalf("descriptor failure should yield exactly 1 record, got %d", len(records))
	}
	if records[0].EntryType != types.EntryError {
		t.Errorf("EntryType = %v, want Error", records[0].EntryType)
	}
	if !strings.HasPrefix(records[0].Permissions, "Could not access permissions:") {
		t.Errorf("Permissions = %q", records[0].Permissions)
	}
	if records[0].Principal != "N/A" {
		t.Errorf("Principal = %q, want N/A", records[0].Principal)
	}
}

type slowProvider struct{}

func (slowProvider) Name() string { return "slow" }

func (slowProvider) Descriptor(ctx context.Context, path string) (*acl.Descriptor, error) {
	select {
	case <-time.After(5 * time.Second):
		return &acl.Descriptor{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestScanFolder_Timeout(t *testing.T) {
	s := newTestScanner(t, slowProvider{}, WithTimeout(20*time.Millisecond))

	start := time.Now()
	records := s.ScanFolder(context.Background(), "/srv/wedged")
	if time.Since(start) > 2*time.Second {
		t.Fatal("scan did not respect timeout")
	}

	if len(records) != 1 || records[0].EntryType != types.EntryError {
		t.Fatalf("timeout should yield one Error record, got %+v", records)
	}
}

func TestSubfolders(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"alpha", "beta"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// Files must not be listed.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Nested dirs must not be reached.
	if err := os.Mkdir(filepath.Join(dir, "alpha", "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	s := newTestScanner(t, &acl.Static{})
	subs := s.Subfolders(context.Background(), dir)

	if len(subs) != 2 {
		t.Fatalf("got %d subfolders, want 2: %v", len(subs), subs)
	}
	for _, sub := range subs {
		if strings.Contains(sub, "nested") || strings.Contains(sub, "notes.txt") {
			t.Errorf("unexpected entry %q", sub)
		}
	}
}

func TestSubfolders_MissingParent(t *testing.T) {
	s := newTestScanner(t, &acl.Static{})
	if subs := s.Subfolders(context.Background(), "/does/not/exist"); len(subs) != 0 {
		t.Errorf("missing parent should yield no subfolders, got %v", subs)
	}
}

func TestScanTree_Order(t *testing.T) {
	dir := t.TempDir()
	subA := filepath.Join(dir, "a")
	subB := filepath.Join(dir, "b")
	for _, d := range []string{subA, subB} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	provider := &acl.Static{
		Descriptors: map[string]*acl.Descriptor{
			dir:  {Entries: []acl.Entry{{Principal: "root", Type: acl.AceAllow, Mask: acl.MaskFullControl}}},
			subA: {Entries: []acl.Entry{{Principal: "a-user", Type: acl.AceAllow, Mask: acl.MaskGenericRead}}},
			subB: {Entries: []acl.Entry{{Principal: "b-user", Type: acl.AceAllow, Mask: acl.MaskGenericRead}}},
		},
	}
	s := newTestScanner(t, provider)

	records := s.ScanTree(context.Background(), dir)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	// Parent first, then subfolders in listing order.
	if records[0].Principal != "root" {
		t.Errorf("first record = %+v, want parent's", records[0])
	}
	if records[1].Principal != "a-user" || records[2].Principal != "b-user" {
		t.Errorf("subfolder order wrong: %+v", records[1:])
	}
}

func TestScanTree_ErrorsAbsorbed(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "locked")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	provider := &acl.Static{
		Descriptors: map[string]*acl.Descriptor{
			dir: {Entries: []acl.Entry{{Principal: "root", Type: acl.AceAllow, Mask: acl.MaskGenericRead}}},
		},
		Errors: map[string]error{
			sub: errors.New("sharing violation"),
		},
	}
	s := newTestScanner(t, provider)

	records := s.ScanTree(context.Background(), dir)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[1].EntryType != types.EntryError {
		t.Errorf("subfolder failure should produce an Error record, got %+v", records[1])
	}
}
