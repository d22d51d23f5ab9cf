package state

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrCorrupt means the ledger file exists but cannot be decoded. This is
// fatal for the run: silently proceeding with an empty ledger would force a
// full re-push of every document.
var ErrCorrupt = errors.New("state: ledger is corrupt")

// Record is the persisted sync state for a single document path.
type Record struct {
	RemotePageID          string    `json:"remotePageId"`
	Title                 string    `json:"title"`
	Category              string    `json:"category"`
	RemoteVersion         int       `json:"remoteVersion"`
	RemoteParentID        string    `json:"remoteParentId"`
	LastSyncedFingerprint string    `json:"lastSyncedFingerprint"`
	LastSyncedAt          time.Time `json:"lastSyncedAt"`
}

// Store is the ledger of what has already been synchronized, keyed by
// repo-relative document path. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Load reads the ledger from path. A missing file yields an empty store; an
// unreadable or undecodable file yields ErrCorrupt.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStore(), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var records map[string]*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if records == nil {
		records = make(map[string]*Record)
	}

	return &Store{records: records}, nil
}

// Save writes the ledger atomically: marshal to a temp file in the target
// directory, then rename over the destination. A crash mid-save leaves the
// previous ledger intact.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.records, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".wikibridge-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Record returns a copy of the record for path, or nil if none exists.
func (s *Store) Record(path string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[path]
	if !ok {
		return nil
	}
	copied := *rec
	return &copied
}

// NeedsPush reports whether the document at path must be re-transmitted:
// either it has never been synced, or its fingerprint changed since the last
// successful push.
func (s *Store) NeedsPush(path, fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[path]
	if !ok {
		return true
	}
	return rec.LastSyncedFingerprint != fingerprint
}

// NeedsPull reports whether the remote page for path has a newer version
// than the ledger recorded. Unknown paths never need a pull.
func (s *Store) NeedsPull(path string, remoteVersion int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[path]
	if !ok {
		return false
	}
	return remoteVersion > rec.RemoteVersion
}

// RecordPush upserts the record for path after a successful push. The stored
// RemoteVersion never decreases.
func (s *Store) RecordPush(path, pageID, title string, remoteVersion int, parentID, category, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[path]
	if !ok {
		rec = &Record{}
		s.records[path] = rec
	}
	if remoteVersion > rec.RemoteVersion {
		rec.RemoteVersion = remoteVersion
	}
	rec.RemotePageID = pageID
	rec.Title = title
	rec.RemoteParentID = parentID
	rec.Category = category
	rec.LastSyncedFingerprint = fingerprint
	rec.LastSyncedAt = time.Now().UTC()
}

// RecordPull updates the record after a successful pull: the local file now
// matches the given remote version and fingerprint.
func (s *Store) RecordPull(path string, remoteVersion int, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[path]
	if !ok {
		return
	}
	if remoteVersion > rec.RemoteVersion {
		rec.RemoteVersion = remoteVersion
	}
	rec.LastSyncedFingerprint = fingerprint
	rec.LastSyncedAt = time.Now().UTC()
}

// FindOrphans returns ledger paths absent from currentPaths, sorted. These
// are sync records whose local document disappeared since the last full scan.
func (s *Store) FindOrphans(currentPaths map[string]bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orphans []string
	for path := range s.records {
		if !currentPaths[path] {
			orphans = append(orphans, path)
		}
	}
	sort.Strings(orphans)
	return orphans
}

// Remove deletes the record for path, typically after orphan cleanup
// confirmed the remote page is gone.
func (s *Store) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, path)
}

// Paths returns all tracked paths, sorted.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.records))
	for path := range s.records {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of tracked documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Fingerprint computes the content fingerprint used for change detection.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("sha256:%x", sum)
}
