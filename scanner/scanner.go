// Package scanner walks a directory and its immediate children, decoding
// each DACL into permission records. One pass per request, no caching:
// the filesystem is the state.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/karhu-io/aclscan/acl"
	"github.com/karhu-io/aclscan/telemetry"
	"github.com/karhu-io/aclscan/types"
)

// DefaultTimeout bounds descriptor retrieval per directory so one wedged
// path cannot stall a whole request.
const DefaultTimeout = 10 * time.Second

// Scanner enumerates folder permissions through an acl.Provider.
type Scanner struct {
	provider acl.Provider
	logger   *telemetry.Logger
	metrics  *Metrics
	timeout  time.Duration
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithTimeout overrides the per-directory descriptor timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) { s.timeout = d }
}

// WithLogger overrides the default logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// New creates a Scanner over the given provider.
func New(provider acl.Provider, opts ...Option) (*Scanner, error) {
	metrics, err := NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner metrics: %w", err)
	}

	s := &Scanner{
		provider: provider,
		logger:   telemetry.NewLogger("scanner"),
		metrics:  metrics,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ScanFolder enumerates one directory's DACL into records.
//
// A missing path yields no records. A null DACL yields no records. A path
// that exists but whose descriptor query fails yields exactly one
// Error-typed record carrying the failure detail.
func (s *Scanner) ScanFolder(ctx context.Context, path string) []types.Record {
	desc, err := s.descriptor(ctx, path)
	if err != nil {
		if errors.Is(err, acl.ErrNotExist) {
			s.logger.WithContext(ctx).Error().
				Str("path", path).
				Msg("path not found")
			return nil
		}

		s.logger.LogScanError(ctx, path, err)
		s.metrics.recordError(ctx, s.provider.Name())
		return []types.Record{{
			FolderPath:  path,
			Principal:   "N/A",
			EntryType:   types.EntryError,
			Permissions: fmt.Sprintf("Could not access permissions: %v", err),
		}}
	}

	if desc.NoDACL {
		return nil
	}

	records := make([]types.Record, 0, len(desc.Entries))
	for _, entry := range desc.Entries {
		records = append(records, types.Record{
			FolderPath:  path,
			Principal:   entry.Principal,
			EntryType:   entry.Type.EntryType(),
			Permissions: acl.PermissionString(entry.Mask),
		})
	}

	s.metrics.recordFolder(ctx, s.provider.Name(), len(records))
	return records
}

// Subfolders lists the immediate child directories of path. Failures are
// absorbed: a missing or unreadable parent is logged and treated as having
// no subfolders. Never recurses.
func (s *Scanner) Subfolders(ctx context.Context, path string) []string {
	entries, err := os.ReadDir(path)
	if err != nil {
		s.logger.WithContext(ctx).Error().
			Err(err).
			Str("path", path).
			Msg("failed to list subfolders")
		return nil
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(path, entry.Name()))
		}
	}
	return dirs
}

// ScanTree scans path and each of its immediate subdirectories, parent
// first, subfolders in listing order.
func (s *Scanner) ScanTree(ctx context.Context, path string) []types.Record {
	ctx, span := telemetry.Tracer.Start(ctx, "scanner.scan_tree",
		trace.WithAttributes(attribute.String("scan.path", path)))
	defer span.End()

	start := time.Now()

	records := s.ScanFolder(ctx, path)
	subfolders := s.Subfolders(ctx, path)
	s.logger.LogScanStart(ctx, path, len(subfolders))

	for _, sub := range subfolders {
		records = append(records, s.ScanFolder(ctx, sub)...)
	}

	elapsed := time.Since(start)
	s.metrics.recordDuration(ctx, elapsed.Seconds())
	s.logger.LogScanComplete(ctx, path, len(records), float64(elapsed.Milliseconds()))

	span.SetAttributes(
		attribute.Int("scan.records", len(records)),
		attribute.Int("scan.subfolders", len(subfolders)),
	)
	return records
}

// descriptor retrieves the security descriptor under the configured timeout.
// The provider call runs in its own goroutine because the underlying OS
// calls cannot be interrupted; on timeout the result is abandoned.
func (s *Scanner) descriptor(ctx context.Context, path string) (*acl.Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		desc *acl.Descriptor
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		desc, err := s.provider.Descriptor(ctx, path)
		ch <- result{desc, err}
	}()

	select {
	case r := <-ch:
		return r.desc, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("descriptor query for %s: %w", path, ctx.Err())
	}
}
