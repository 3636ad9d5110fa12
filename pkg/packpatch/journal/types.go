// Package journal keeps a history of patch runs on disk.
package journal

import (
	"time"

	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

// Entry is the persisted record of one patch run.
type Entry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Root      string          `json:"root"`
	Manifest  string          `json:"manifest"`
	Profile   string          `json:"profile,omitempty"`
	Status    types.RunStatus `json:"status"`
	DryRun    bool            `json:"dry_run,omitempty"`
	Error     string          `json:"error,omitempty"`
	Summary   Summary         `json:"summary"`
	Outcomes  []OutcomeRecord `json:"outcomes"`
}

// OutcomeRecord is the persisted form of one operation outcome.
type OutcomeRecord struct {
	Index  int          `json:"index"`
	Kind   string       `json:"kind"`
	Path   string       `json:"path"`
	To     string       `json:"to,omitempty"`
	Status types.Status `json:"status"`
	Detail string       `json:"detail,omitempty"`
	Bytes  int64        `json:"bytes,omitempty"`
}

// Summary contains run totals.
type Summary struct {
	Applied      int           `json:"applied"`
	Skipped      int           `json:"skipped"`
	Failed       int           `json:"failed"`
	BytesWritten int64         `json:"bytes_written"`
	Elapsed      time.Duration `json:"elapsed"`
}

// ShortID returns the first eight characters of the entry ID.
func (e *Entry) ShortID() string {
	if len(e.ID) <= 8 {
		return e.ID
	}
	return e.ID[:8]
}
