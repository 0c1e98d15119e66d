package digests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const fileStoreVersion = 1

// FileStore keeps the snapshot in a JSON manifest on disk.
type FileStore struct {
	path string
	now  func() time.Time
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by the manifest at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

type manifest struct {
	Version     int       `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	Records     []Record  `json:"records"`
}

// Load reads the manifest. A missing manifest is an empty snapshot.
func (s *FileStore) Load(ctx context.Context) (map[string]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("digests: read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("digests: parse manifest %s: %w", s.path, err)
	}
	if m.Version != fileStoreVersion {
		return map[string]Record{}, nil
	}
	out := make(map[string]Record, len(m.Records))
	for _, rec := range m.Records {
		out[rec.PostID] = rec
	}
	return out, nil
}

// Save writes the manifest through a temporary file and a rename.
func (s *FileStore) Save(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b Record) int { return strings.Compare(a.PostID, b.PostID) })

	data, err := json.MarshalIndent(manifest{
		Version:     fileStoreVersion,
		GeneratedAt: s.now().UTC(),
		Records:     sorted,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("digests: encode manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("digests: create manifest dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".digests-*.json")
	if err != nil {
		return fmt.Errorf("digests: create temp manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("digests: write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("digests: close manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("digests: replace manifest: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
