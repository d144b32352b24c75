package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/karhu-io/aclscan/policy"
	"github.com/karhu-io/aclscan/report"
	"github.com/karhu-io/aclscan/types"
	"github.com/karhu-io/aclscan/wal"
)

type submitRequest struct {
	Link string `json:"link"`
}

type submitResponse struct {
	Message  string           `json:"message"`
	Filename string           `json:"filename"`
	Data     []types.Record   `json:"data,omitempty"`
	Findings []policy.Finding `json:"findings,omitempty"`
}

// handleSubmitLink runs the whole flow: scan the folder and its immediate
// subfolders, write the CSV report, record the run, and answer with the
// report filename (plus the records inline when configured).
func (s *Server) handleSubmitLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Link == "" || !pathExists(req.Link) {
		writeError(w, http.StatusBadRequest, "folder path is missing or does not exist")
		return
	}

	s.auditLog(wal.EntryRequested, req.Link, nil, nil)

	records := s.scanner.ScanTree(ctx, req.Link)
	if len(records) == 0 {
		s.auditLog(wal.EntryFailed, req.Link, nil, errors.New("no permission data retrieved"))
		writeError(w, http.StatusInternalServerError, "could not retrieve any permission data")
		return
	}

	run := types.ScanRun{
		FolderPath:  req.Link,
		Subfolders:  countSubfolders(records, req.Link),
		RecordCount: len(records),
		ErrorCount:  types.CountErrors(records),
		ScannedAt:   time.Now(),
	}
	s.auditLog(wal.EntryScanned, req.Link, run, nil)

	filename, err := s.reports.Write(ctx, records)
	if err != nil {
		s.auditLog(wal.EntryFailed, req.Link, run, err)
		writeError(w, http.StatusInternalServerError, "failed to generate the report file")
		return
	}
	run.Report = filename
	s.logger.LogReportWritten(ctx, filename, len(records))

	if s.store != nil {
		if _, err := s.store.RecordRun(run); err != nil {
			// History is best-effort; the report itself already exists.
			s.logger.LogStorageError(ctx, "record_run", err)
		}
	}
	s.auditLog(wal.EntryReported, req.Link, run, nil)

	resp := submitResponse{
		Message:  "Report generated successfully.",
		Filename: filename,
	}
	if s.cfg.InlineData {
		resp.Data = records
		resp.Findings = s.evaluatePolicies(r, records)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDownload streams a previously generated report. The filename comes
// from the client, so it only ever resolves inside the reports root.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	path, err := s.reports.Resolve(filename)
	switch {
	case errors.Is(err, report.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	case errors.Is(err, report.ErrNotFound):
		writeError(w, http.StatusNotFound, "file not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to resolve report")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}

// handleReports lists recent scan runs, newest first.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"runs": []types.ScanRun{}})
		return
	}

	runs, err := s.store.RecentRuns(types.RunFilter{
		FolderPath: r.URL.Query().Get("folder"),
		Limit:      50,
	})
	if err != nil {
		s.logger.LogStorageError(r.Context(), "recent_runs", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if runs == nil {
		runs = []types.ScanRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	health := map[string]any{
		"status": "healthy",
		"uptime": int64(time.Since(s.started).Seconds()),
	}
	if s.store != nil {
		folders, rev, _ := s.store.Stats()
		health["folders_tracked"] = folders
		health["storage_revision"] = rev
	}
	writeJSON(w, http.StatusOK, health)
}

// evaluatePolicies attaches risk findings when the engine is enabled.
// Policy failures never fail the request.
func (s *Server) evaluatePolicies(r *http.Request, records []types.Record) []policy.Finding {
	if s.policies == nil {
		return nil
	}
	findings, err := s.policies.Evaluate(r.Context(), records)
	if err != nil {
		s.logger.WithContext(r.Context()).Error().
			Err(err).
			Msg("policy evaluation failed")
		return nil
	}
	return findings
}

// auditLog appends to the WAL when one is configured. Audit failures are
// logged, never surfaced.
func (s *Server) auditLog(entryType wal.EntryType, folderPath string, data interface{}, cause error) {
	if s.audit == nil {
		return
	}
	var err error
	if cause != nil {
		err = s.audit.AppendError(entryType, folderPath, data, cause)
	} else {
		err = s.audit.Append(entryType, folderPath, data)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("path", folderPath).Msg("audit append failed")
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// countSubfolders counts distinct folder paths other than the parent that
// contributed records.
func countSubfolders(records []types.Record, parent string) int {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r.FolderPath != parent {
			seen[r.FolderPath] = true
		}
	}
	return len(seen)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError keeps one JSON error envelope for every failure response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
