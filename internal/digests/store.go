// Package digests persists the per-post digests of the last successful
// build so incremental builds can skip posts whose output cannot have
// changed.
package digests

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// Record is the cached state of one post page.
type Record struct {
	PostID              string    `json:"post_id"`
	Slug                string    `json:"slug"`
	Route               string    `json:"route"`
	Output              string    `json:"output"`
	Digest              string    `json:"digest"`
	SourceChecksum      string    `json:"source_checksum"`
	RendererFingerprint string    `json:"renderer_fingerprint"`
	RecordedAt          time.Time `json:"recorded_at"`
}

// Matches reports whether r and other would render identical output.
func (r Record) Matches(other Record) bool {
	return r.Digest == other.Digest &&
		r.SourceChecksum == other.SourceChecksum &&
		r.RendererFingerprint == other.RendererFingerprint &&
		r.Route == other.Route
}

// Store loads and replaces the digest snapshot.
type Store interface {
	// Load returns the last saved records keyed by post id.
	Load(ctx context.Context) (map[string]Record, error)
	// Save replaces the snapshot with records.
	Save(ctx context.Context, records []Record) error
	Close() error
}

// Changes classifies the posts of a build against the previous snapshot.
type Changes struct {
	Added     []string
	Changed   []string
	Unchanged []string
	Removed   []string
}

// Diff compares current records with the previous snapshot. Every slice is
// sorted by post id.
func Diff(previous map[string]Record, current []Record) Changes {
	var changes Changes
	seen := make(map[string]struct{}, len(current))
	for _, rec := range current {
		seen[rec.PostID] = struct{}{}
		prev, ok := previous[rec.PostID]
		switch {
		case !ok:
			changes.Added = append(changes.Added, rec.PostID)
		case prev.Matches(rec):
			changes.Unchanged = append(changes.Unchanged, rec.PostID)
		default:
			changes.Changed = append(changes.Changed, rec.PostID)
		}
	}
	for id := range previous {
		if _, ok := seen[id]; !ok {
			changes.Removed = append(changes.Removed, id)
		}
	}
	slices.Sort(changes.Added)
	slices.Sort(changes.Changed)
	slices.Sort(changes.Unchanged)
	slices.Sort(changes.Removed)
	return changes
}

// MemoryStore keeps the snapshot in process. It backs tests and watch mode.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}}
}

func (s *MemoryStore) Load(context.Context) (map[string]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.records), nil
}

func (s *MemoryStore) Save(_ context.Context, records []Record) error {
	next := make(map[string]Record, len(records))
	for _, rec := range records {
		next[rec.PostID] = rec
	}
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
