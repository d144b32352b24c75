// Package report writes scan results to timestamped CSV files inside a
// single trusted reports directory and resolves download requests back into
// that directory, never outside it.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/karhu-io/aclscan/telemetry"
	"github.com/karhu-io/aclscan/types"
)

// Errors callers must tell apart: an empty scan is not a write failure, and
// a bad filename is not a missing file.
var (
	ErrNoRecords   = errors.New("no records to report")
	ErrNotFound    = errors.New("report not found")
	ErrInvalidName = errors.New("invalid report filename")
)

// Column order is part of the report contract.
var header = []string{"Folder Path", "Principal", "Type", "Permissions"}

// Writer persists permission records as CSV reports.
type Writer struct {
	dir    string
	logger *telemetry.Logger
	now    func() time.Time
}

// NewWriter creates the reports directory if needed and returns a Writer
// rooted there.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}
	return &Writer{
		dir:    dir,
		logger: telemetry.NewLogger("report"),
		now:    time.Now,
	}, nil
}

// Dir returns the reports root.
func (w *Writer) Dir() string { return w.dir }

// Write serializes records to a new CSV file and returns its base filename.
//
// Empty input returns ErrNoRecords without creating a file. Filenames embed
// a second-granularity timestamp so reports sort chronologically, plus a
// random token so two requests inside the same second never collide.
func (w *Writer) Write(ctx context.Context, records []types.Record) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}

	token := strings.SplitN(uuid.NewString(), "-", 2)[0]
	filename := fmt.Sprintf("permissions_report_%s_%s.csv",
		w.now().Format("2006-01-02_15-04-05"), token)
	path := filepath.Join(w.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		w.logger.LogReportError(ctx, err)
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		w.logger.LogReportError(ctx, err)
		return "", fmt.Errorf("failed to write report header: %w", err)
	}
	for _, r := range records {
		row := []string{r.FolderPath, r.Principal, string(r.EntryType), r.Permissions}
		if err := cw.Write(row); err != nil {
			w.logger.LogReportError(ctx, err)
			return "", fmt.Errorf("failed to write report row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		w.logger.LogReportError(ctx, err)
		return "", fmt.Errorf("failed to flush report: %w", err)
	}

	if telemetry.ReportsWritten != nil {
		telemetry.ReportsWritten.Add(ctx, 1)
	}
	return filename, nil
}

// Resolve maps a client-supplied filename to an absolute path inside the
// reports root. Names carrying path separators or traversal components are
// rejected before touching the filesystem.
func (w *Writer) Resolve(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", ErrInvalidName
	}

	root, err := filepath.Abs(w.dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve reports root: %w", err)
	}
	path := filepath.Join(root, filename)
	if !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", ErrInvalidName
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}
