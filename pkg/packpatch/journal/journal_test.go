package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

func sampleReport() *types.Report {
	replace := &types.Operation{Index: 0, Kind: types.KindReplaceFile, Path: "pack.png"}
	patch := &types.Operation{Index: 1, Kind: types.KindPatchJSONField, Path: "assets/minecraft/sounds.json"}
	rename := &types.Operation{Index: 2, Kind: types.KindRenameFile, Path: "a.png", To: "b.png"}

	return &types.Report{
		Root:     "/packs/furfsky",
		Manifest: "Furfsky Mini (modern)",
		Status:   types.RunPartialFailure,
		Outcomes: []types.Outcome{
			{Operation: replace, Status: types.StatusApplied, Detail: "replaced (1.2 KiB)", Bytes: 1234},
			{Operation: patch, Status: types.StatusFailed, Detail: "target missing", Err: types.ErrTargetMissing},
			{Operation: rename, Status: types.StatusSkipped, Detail: "already renamed"},
		},
		Elapsed: 42 * time.Millisecond,
	}
}

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "journal"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return j
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New() error = nil, want error for empty directory")
	}

	j, err := New("/tmp/journal")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if j.Dir() != "/tmp/journal" {
		t.Errorf("Dir() = %q", j.Dir())
	}
}

func TestJournal_RecordAndGet(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	entry, err := j.Record(sampleReport(), "modern")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if entry.ID == "" {
		t.Fatal("Record() returned entry without ID")
	}
	if entry.Summary.Applied != 1 || entry.Summary.Failed != 1 || entry.Summary.Skipped != 1 {
		t.Errorf("Summary = %+v", entry.Summary)
	}
	if entry.Summary.BytesWritten != 1234 {
		t.Errorf("BytesWritten = %d, want 1234", entry.Summary.BytesWritten)
	}

	got, err := j.Get(entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != types.RunPartialFailure {
		t.Errorf("Status = %s", got.Status)
	}
	if got.Profile != "modern" {
		t.Errorf("Profile = %q", got.Profile)
	}
	if len(got.Outcomes) != 3 {
		t.Fatalf("len(Outcomes) = %d, want 3", len(got.Outcomes))
	}
	if got.Outcomes[1].Kind != "PATCH_JSON_FIELD" || got.Outcomes[1].Status != types.StatusFailed {
		t.Errorf("Outcomes[1] = %+v", got.Outcomes[1])
	}
	if got.Outcomes[2].To != "b.png" {
		t.Errorf("Outcomes[2].To = %q", got.Outcomes[2].To)
	}

	byPrefix, err := j.Get(entry.ShortID())
	if err != nil {
		t.Fatalf("Get(short) error = %v", err)
	}
	if byPrefix.ID != entry.ID {
		t.Errorf("Get(short) ID = %s, want %s", byPrefix.ID, entry.ID)
	}
}

func TestJournal_RecordAbortedRun(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	report := &types.Report{Root: "/x", Manifest: "m", Status: types.RunAborted, Err: types.ErrNotAPack}
	entry, err := j.Record(report, "")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if entry.Error != types.ErrNotAPack.Error() {
		t.Errorf("Error = %q", entry.Error)
	}
	if entry.Outcomes == nil {
		t.Error("Outcomes should be empty, not nil")
	}
}

func TestJournal_GetMissing(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	if _, err := j.Record(sampleReport(), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := j.Get("does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := j.Get(""); err == nil {
		t.Error("Get(\"\") error = nil")
	}
}

func TestJournal_ListOrderAndLimit(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		j.now = func() time.Time { return ts }
		e, err := j.Record(sampleReport(), "modern")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, e.ID)
	}

	all, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(List(0)) = %d, want 3", len(all))
	}
	if all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Error("List() is not newest first")
	}

	limited, err := j.List(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("len(List(2)) = %d, want 2", len(limited))
	}
}

func TestJournal_ListMissingDir(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("List() = %v, want empty slice", entries)
	}
}

func TestJournal_ListSkipsJunk(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	if _, err := j.Record(sampleReport(), ""); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(j.Dir(), "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(j.Dir(), "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := j.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("len(List()) = %d, want 1", len(entries))
	}
}

func TestJournal_Cleanup(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	now := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	for _, age := range []int{1, 10, 40, 90} {
		ts := now.AddDate(0, 0, -age)
		j.now = func() time.Time { return ts }
		if _, err := j.Record(sampleReport(), ""); err != nil {
			t.Fatal(err)
		}
	}
	j.now = func() time.Time { return now }

	removed, err := j.Cleanup(30)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Cleanup() removed %d, want 2", removed)
	}

	entries, err := j.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("len(List()) = %d after cleanup, want 2", len(entries))
	}

	removed, err = j.Cleanup(0)
	if err != nil || removed != 0 {
		t.Errorf("Cleanup(0) = %d, %v; want 0, nil", removed, err)
	}
}
