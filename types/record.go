package types

import "time"

// EntryType classifies an access-control entry.
type EntryType string

const (
	EntryAllow EntryType = "Allow"
	EntryDeny  EntryType = "Deny"
	EntryError EntryType = "Error"
)

// Record is one decoded access-control entry for a folder. Records are value
// objects: built once by the scanner and never mutated afterwards.
type Record struct {
	FolderPath  string    `json:"folder_path"`
	Principal   string    `json:"principal"`
	EntryType   EntryType `json:"entry_type"`
	Permissions string    `json:"permissions"`
}

// IsError reports whether the record is a synthetic enumeration failure marker.
func (r Record) IsError() bool {
	return r.EntryType == EntryError
}

// ScanRun summarizes one completed scan request.
type ScanRun struct {
	FolderPath  string    `json:"folder_path"`
	Subfolders  int       `json:"subfolders"`
	RecordCount int       `json:"record_count"`
	ErrorCount  int       `json:"error_count"`
	Report      string    `json:"report,omitempty"`
	ScannedAt   time.Time `json:"scanned_at"`
}

// RunFilter narrows scan-run queries.
type RunFilter struct {
	FolderPath string `json:"folder_path,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Matches checks whether a run satisfies the filter. Limit is applied by the
// store, not here.
func (f RunFilter) Matches(run ScanRun) bool {
	return f.FolderPath == "" || f.FolderPath == run.FolderPath
}

// CountErrors counts the Error-typed records in a batch.
func CountErrors(records []Record) int {
	n := 0
	for _, r := range records {
		if r.IsError() {
			n++
		}
	}
	return n
}
