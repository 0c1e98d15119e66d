package digests

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-folio/pkg/testsupport"
)

func sampleRecords() []Record {
	at := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	return []Record{
		{PostID: "b", Slug: "/b/", Route: "/post/b/", Output: "post/b/index.html", Digest: "d2", SourceChecksum: "c2", RendererFingerprint: "f", RecordedAt: at},
		{PostID: "a", Slug: "/a/", Route: "/post/a/", Output: "post/a/index.html", Digest: "d1", SourceChecksum: "c1", RendererFingerprint: "f", RecordedAt: at},
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty snapshot, got %v", empty)
	}

	if err := store.Save(ctx, sampleRecords()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 records, got %d", len(loaded))
	}
	a := loaded["a"]
	if a.Slug != "/a/" || a.Output != "post/a/index.html" || a.Digest != "d1" || a.RendererFingerprint != "f" {
		t.Fatalf("unexpected record %+v", a)
	}

	if err := store.Save(ctx, sampleRecords()[:1]); err != nil {
		t.Fatalf("Save replace: %v", err)
	}
	replaced, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load replaced: %v", err)
	}
	if len(replaced) != 1 || replaced["b"].Digest != "d2" {
		t.Fatalf("expected snapshot to be replaced, got %v", replaced)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(filepath.Join(t.TempDir(), "cache", "digests.json")))
}

func TestBunStoreSQLite(t *testing.T) {
	store, err := Open(context.Background(), Config{Driver: "sqlite", DSN: testsupport.SQLiteMemoryDSN(t)})
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	exerciseStore(t, store)
}

func TestBunStoreOnExistingDB(t *testing.T) {
	db := bun.NewDB(testsupport.NewSQLiteMemoryDB(t), sqlitedialect.New())
	store := NewBunStore(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema must be idempotent: %v", err)
	}
	exerciseStore(t, store)
}

func TestOpenValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Config{Driver: "file"}); err == nil {
		t.Fatal("expected file store without path to fail")
	}
	if _, err := Open(ctx, Config{Driver: "sqlite"}); err == nil {
		t.Fatal("expected sqlite store without dsn to fail")
	}
	if _, err := Open(ctx, Config{Driver: "redis"}); err == nil {
		t.Fatal("expected unsupported driver to fail")
	}
	store, err := Open(ctx, Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestDiff(t *testing.T) {
	previous := map[string]Record{
		"same":    {PostID: "same", Digest: "1", SourceChecksum: "x", RendererFingerprint: "f", Route: "/post/same/"},
		"edited":  {PostID: "edited", Digest: "1", SourceChecksum: "x", RendererFingerprint: "f", Route: "/post/edited/"},
		"deleted": {PostID: "deleted"},
	}
	current := []Record{
		{PostID: "same", Digest: "1", SourceChecksum: "x", RendererFingerprint: "f", Route: "/post/same/"},
		{PostID: "edited", Digest: "1", SourceChecksum: "y", RendererFingerprint: "f", Route: "/post/edited/"},
		{PostID: "new"},
	}

	changes := Diff(previous, current)
	if len(changes.Unchanged) != 1 || changes.Unchanged[0] != "same" {
		t.Fatalf("unexpected unchanged %v", changes.Unchanged)
	}
	if len(changes.Changed) != 1 || changes.Changed[0] != "edited" {
		t.Fatalf("unexpected changed %v", changes.Changed)
	}
	if len(changes.Added) != 1 || changes.Added[0] != "new" {
		t.Fatalf("unexpected added %v", changes.Added)
	}
	if len(changes.Removed) != 1 || changes.Removed[0] != "deleted" {
		t.Fatalf("unexpected removed %v", changes.Removed)
	}
}
