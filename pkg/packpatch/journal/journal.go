package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"

	"github.com/jamesainslie/packpatch/pkg/packpatch/fsys"
	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

// ErrNotFound is returned by Get when no entry matches.
var ErrNotFound = errors.New("journal entry not found")

// ErrAmbiguous is returned by Get when an ID prefix matches several entries.
var ErrAmbiguous = errors.New("journal entry ID is ambiguous")

// DefaultDir returns the default journal directory.
func DefaultDir() string {
	return filepath.Join(xdg.DataHome, "packpatch", "journal")
}

// Journal stores one JSON file per run in a directory.
type Journal struct {
	dir string
	fs  fsys.FS
	mu  sync.Mutex
	now func() time.Time
}

// New creates a Journal backed by dir.
// The directory is not created until EnsureDir or Record is called.
func New(dir string) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal directory cannot be empty")
	}
	return &Journal{dir: dir, fs: fsys.NewOS(), now: time.Now}, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

// EnsureDir creates the journal directory if it does not exist.
func (j *Journal) EnsureDir() error {
	return j.fs.MkdirAll(j.dir, 0o755)
}

// Record persists report and returns the created entry.
func (j *Journal) Record(report *types.Report, profile string) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := newEntry(report, profile)
	entry.ID = uuid.NewString()
	entry.Timestamp = j.now().UTC()

	if err := j.fs.MkdirAll(j.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	if err := j.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to write journal entry: %w", err)
	}
	return entry, nil
}

func newEntry(report *types.Report, profile string) *Entry {
	counts := report.Counts()
	entry := &Entry{
		Root:     report.Root,
		Manifest: report.Manifest,
		Profile:  profile,
		Status:   report.Status,
		DryRun:   report.DryRun,
		Summary: Summary{
			Applied:      counts.Applied,
			Skipped:      counts.Skipped,
			Failed:       counts.Failed,
			BytesWritten: report.BytesWritten(),
			Elapsed:      report.Elapsed,
		},
		Outcomes: make([]OutcomeRecord, 0, len(report.Outcomes)),
	}
	if report.Err != nil {
		entry.Error = report.Err.Error()
	}

	for _, o := range report.Outcomes {
		rec := OutcomeRecord{Status: o.Status, Detail: o.Detail, Bytes: o.Bytes}
		if op := o.Operation; op != nil {
			rec.Index = op.Index
			rec.Kind = op.Kind.String()
			rec.Path = op.Path
			rec.To = op.To
		}
		entry.Outcomes = append(entry.Outcomes, rec)
	}
	return entry
}

// writeEntry writes an entry to a JSON file in the journal directory.
func (j *Journal) writeEntry(entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	return j.fs.WriteFileAtomic(filepath.Join(j.dir, entryFilename(entry)), data, 0o644)
}

// entryFilename sorts lexically by time and stays unique through the ID.
func entryFilename(entry *Entry) string {
	return fmt.Sprintf("%s-%s.json", entry.Timestamp.Format("20060102T150405"), entry.ID)
}

// List returns entries sorted newest first.
// If limit is 0 or negative, all entries are returned.
func (j *Journal) List(limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readAll()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get returns the entry whose ID equals id or starts with it.
func (j *Journal) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readAll()
	if err != nil {
		return nil, err
	}

	var match *Entry
	for i := range entries {
		e := &entries[i]
		if e.ID == id {
			return e, nil
		}
		if strings.HasPrefix(e.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
			}
			match = e
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

// Cleanup removes entries recorded more than retentionDays ago and returns
// how many were removed. A retention of zero or less keeps everything.
func (j *Journal) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.now().AddDate(0, 0, -retentionDays)

	files, err := j.fs.ReadDir(j.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read journal directory: %w", err)
	}

	var removed int
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		entry, err := j.readEntryFile(f.Name())
		if err != nil {
			continue
		}
		if entry.Timestamp.Before(cutoff) {
			if err := j.fs.Remove(filepath.Join(j.dir, f.Name())); err != nil {
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// readAll returns every readable entry, newest first.
// Must be called with j.mu held.
func (j *Journal) readAll() ([]Entry, error) {
	files, err := j.fs.ReadDir(j.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || fsys.IsTemp(f.Name()) || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		entry, err := j.readEntryFile(f.Name())
		if err != nil {
			// Skip files that can't be parsed
			continue
		}
		entries = append(entries, *entry)
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Timestamp.After(entries[b].Timestamp)
	})
	return entries, nil
}

// readEntryFile reads and parses an entry from a JSON file.
func (j *Journal) readEntryFile(filename string) (*Entry, error) {
	data, err := j.fs.ReadFile(filepath.Join(j.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}
