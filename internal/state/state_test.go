package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewStore(t *testing.T) {
	s := NewStore()

	if s.Len() != 0 {
		t.Errorf("new store should be empty, got %d records", s.Len())
	}
	if s.Record("missing.md") != nil {
		t.Error("Record should return nil for unknown paths")
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.json")

	s := NewStore()
	s.RecordPush("guides/setup.md", "12345", "Setup", 3, "999", "guides", "sha256:abc")

	if err := s.Save(statePath); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}

	loaded, err := Load(statePath)
	if err != nil {
		t.Fatalf("Failed to load state: %v", err)
	}

	rec := loaded.Record("guides/setup.md")
	if rec == nil {
		t.Fatal("Record not found after reload")
	}
	if rec.RemotePageID != "12345" {
		t.Errorf("RemotePageID mismatch: got %s, want 12345", rec.RemotePageID)
	}
	if rec.Title != "Setup" {
		t.Errorf("Title mismatch: got %s, want Setup", rec.Title)
	}
	if rec.RemoteVersion != 3 {
		t.Errorf("RemoteVersion mismatch: got %d, want 3", rec.RemoteVersion)
	}
	if rec.RemoteParentID != "999" {
		t.Errorf("RemoteParentID mismatch: got %s, want 999", rec.RemoteParentID)
	}
	if rec.LastSyncedFingerprint != "sha256:abc" {
		t.Errorf("Fingerprint mismatch: got %s, want sha256:abc", rec.LastSyncedFingerprint)
	}
	if rec.LastSyncedAt.IsZero() {
		t.Error("LastSyncedAt should be set by RecordPush")
	}
}

func TestLoadNonExistent(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "nonexistent.json")

	// Should return empty store, not error
	s, err := Load(statePath)
	if err != nil {
		t.Fatalf("Load should not error on missing file: %v", err)
	}
	if s == nil {
		t.Fatal("Store should not be nil")
	}
	if s.Len() != 0 {
		t.Error("Store should be empty")
	}
}

func TestLoadCorrupt(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.json")

	if err := os.WriteFile(statePath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	_, err := Load(statePath)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load of corrupt ledger should return ErrCorrupt, got %v", err)
	}
}

func TestSaveAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.json")

	s := NewStore()
	s.RecordPush("a.md", "1", "A", 1, "root", "", "sha256:a")
	if err := s.Save(statePath); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	// No temp files should remain next to the ledger.
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 file after save, got %d", len(entries))
	}
	if entries[0].Name() != "state.json" {
		t.Errorf("Unexpected file: %s", entries[0].Name())
	}
}

func TestNeedsPush(t *testing.T) {
	s := NewStore()

	if !s.NeedsPush("new.md", "sha256:a") {
		t.Error("Untracked document should need push")
	}

	s.RecordPush("new.md", "1", "New", 1, "root", "", "sha256:a")

	if s.NeedsPush("new.md", "sha256:a") {
		t.Error("Unchanged document should not need push")
	}
	if !s.NeedsPush("new.md", "sha256:b") {
		t.Error("Modified document should need push")
	}
}

func TestNeedsPull(t *testing.T) {
	s := NewStore()

	if s.NeedsPull("untracked.md", 5) {
		t.Error("Untracked document should not need pull")
	}

	s.RecordPush("doc.md", "1", "Doc", 3, "root", "", "sha256:a")

	if s.NeedsPull("doc.md", 3) {
		t.Error("Same remote version should not need pull")
	}
	if !s.NeedsPull("doc.md", 4) {
		t.Error("Newer remote version should need pull")
	}
}

func TestRecordPushVersionNeverDecreases(t *testing.T) {
	s := NewStore()
	s.RecordPush("doc.md", "1", "Doc", 5, "root", "", "sha256:a")
	s.RecordPush("doc.md", "1", "Doc", 3, "root", "", "sha256:b")

	rec := s.Record("doc.md")
	if rec.RemoteVersion != 5 {
		t.Errorf("RemoteVersion should not decrease: got %d, want 5", rec.RemoteVersion)
	}
	if rec.LastSyncedFingerprint != "sha256:b" {
		t.Errorf("Fingerprint should still update: got %s", rec.LastSyncedFingerprint)
	}
}

func TestRecordReturnsCopy(t *testing.T) {
	s := NewStore()
	s.RecordPush("doc.md", "1", "Doc", 1, "root", "", "sha256:a")

	rec := s.Record("doc.md")
	rec.RemoteVersion = 99

	if s.Record("doc.md").RemoteVersion != 1 {
		t.Error("mutating a returned record should not affect the store")
	}
}

func TestFindOrphans(t *testing.T) {
	tests := []struct {
		name    string
		tracked []string
		current []string
		want    []string
	}{
		{
			name:    "no orphans",
			tracked: []string{"a.md", "b.md"},
			current: []string{"a.md", "b.md"},
			want:    nil,
		},
		{
			name:    "one orphan",
			tracked: []string{"a.md", "b.md"},
			current: []string{"a.md"},
			want:    []string{"b.md"},
		},
		{
			name:    "all orphans",
			tracked: []string{"a.md", "b.md", "c.md"},
			current: []string{},
			want:    []string{"a.md", "b.md", "c.md"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			for _, path := range tt.tracked {
				s.RecordPush(path, "1", "T", 1, "root", "", "sha256:x")
			}
			current := map[string]bool{}
			for _, path := range tt.current {
				current[path] = true
			}

			got := s.FindOrphans(current)
			if len(got) != len(tt.want) {
				t.Fatalf("FindOrphans returned %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("orphan[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRemove(t *testing.T) {
	s := NewStore()
	s.RecordPush("doc.md", "1", "Doc", 1, "root", "", "sha256:a")
	s.Remove("doc.md")

	if s.Record("doc.md") != nil {
		t.Error("Record should be gone after Remove")
	}
	if s.Len() != 0 {
		t.Errorf("Store should be empty, got %d", s.Len())
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("Hello, World!"))
	b := Fingerprint([]byte("Hello, World!"))
	c := Fingerprint([]byte("something else"))

	if a[:7] != "sha256:" {
		t.Errorf("Fingerprint should start with 'sha256:', got %s", a)
	}
	if a != b {
		t.Error("Fingerprint should be deterministic")
	}
	if a == c {
		t.Error("Different content should produce different fingerprints")
	}
}

func TestMigrateLegacy(t *testing.T) {
	tmpDir := t.TempDir()
	legacy := filepath.Join(tmpDir, "old", "state.json")
	current := filepath.Join(tmpDir, "new", "state.json")

	// No legacy file: nothing migrates.
	migrated, err := MigrateLegacy(legacy, current)
	if err != nil {
		t.Fatalf("MigrateLegacy failed: %v", err)
	}
	if migrated {
		t.Error("Nothing should migrate when legacy file is absent")
	}

	// Legacy file present, no current file: contents move over.
	s := NewStore()
	s.RecordPush("doc.md", "1", "Doc", 1, "root", "", "sha256:a")
	if err := os.MkdirAll(filepath.Dir(legacy), 0755); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(legacy); err != nil {
		t.Fatal(err)
	}

	migrated, err = MigrateLegacy(legacy, current)
	if err != nil {
		t.Fatalf("MigrateLegacy failed: %v", err)
	}
	if !migrated {
		t.Fatal("Expected migration to happen")
	}

	loaded, err := Load(current)
	if err != nil {
		t.Fatalf("Failed to load migrated state: %v", err)
	}
	if loaded.Record("doc.md") == nil {
		t.Error("Migrated ledger should contain the legacy record")
	}

	// A second call is a no-op because current now exists.
	migrated, err = MigrateLegacy(legacy, current)
	if err != nil {
		t.Fatalf("MigrateLegacy failed: %v", err)
	}
	if migrated {
		t.Error("Migration should not repeat once current state exists")
	}
}
