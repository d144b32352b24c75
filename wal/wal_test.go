package wal

import (
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/karhu-io/aclscan/types"
)

func TestWAL_AppendAndRead(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir)
	if err != nil {
		t.Fatalf("Failed to open WAL: %v", err)
	}

	run := types.ScanRun{
		FolderPath:  "/srv/data",
		RecordCount: 4,
		ScannedAt:   time.Now(),
	}

	if err := w.Append(EntryRequested, run.FolderPath, nil); err != nil {
		t.Fatalf("Failed to append requested entry: %v", err)
	}
	if err := w.Append(EntryScanned, run.FolderPath, run); err != nil {
		t.Fatalf("Failed to append scanned entry: %v", err)
	}
	if err := w.AppendError(EntryFailed, run.FolderPath, nil, io.ErrUnexpectedEOF); err != nil {
		t.Fatalf("Failed to append failed entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "aclscan-*.wal"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one WAL file, got %v (err %v)", files, err)
	}

	reader, err := NewReader(files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reader.Close() }()

	var entries []*Entry
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		entries = append(entries, entry)
	}

	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, entry := range entries {
		if entry.Sequence != int64(i+1) {
			t.Errorf("entry %d sequence = %d, want %d", i, entry.Sequence, i+1)
		}
	}
	if entries[0].Type != EntryRequested || entries[1].Type != EntryScanned || entries[2].Type != EntryFailed {
		t.Errorf("entry types = %v %v %v", entries[0].Type, entries[1].Type, entries[2].Type)
	}
	if entries[2].Error == "" {
		t.Error("failed entry should carry error detail")
	}

	var decoded types.ScanRun
	if err := json.Unmarshal(entries[1].Data, &decoded); err != nil {
		t.Fatalf("scanned entry data: %v", err)
	}
	if decoded.FolderPath != "/srv/data" || decoded.RecordCount != 4 {
		t.Errorf("decoded run = %+v", decoded)
	}
}

func TestWAL_SequenceResumesAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(EntryRequested, "/a", nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Append(EntryScanned, "/a", nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// Force a distinct filename for the second process lifetime.
	time.Sleep(1100 * time.Millisecond)

	w2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w2.Close() }()

	if err := w2.Append(EntryRequested, "/b", nil); err != nil {
		t.Fatal(err)
	}

	seen := make(map[int64]bool)
	err = Replay(dir, time.Time{}, func(e *Entry) error {
		if seen[e.Sequence] {
			t.Errorf("duplicate sequence %d", e.Sequence)
		}
		seen[e.Sequence] = true
		return nil
	})
	if err != nil {
		t.Fatalf("Replay error = %v", err)
	}
	if len(seen) != 3 {
		t.Errorf("got %d entries, want 3", len(seen))
	}
	if !seen[3] {
		t.Error("sequence should resume at 3 after restart")
	}
}
