package digests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

var errBunStoreDB = errors.New("digests: bun store requires a database")

// BunStore keeps the snapshot in a SQL table through Bun.
type BunStore struct {
	db *bun.DB
}

var _ Store = (*BunStore)(nil)

type digestModel struct {
	bun.BaseModel `bun:"table:folio_post_digests,alias:fpd"`

	PostID              string    `bun:"post_id,pk"`
	Slug                string    `bun:"slug,notnull"`
	Route               string    `bun:"route,notnull"`
	Output              string    `bun:"output,notnull"`
	Digest              string    `bun:"digest,notnull"`
	SourceChecksum      string    `bun:"source_checksum,notnull"`
	RendererFingerprint string    `bun:"renderer_fingerprint,notnull"`
	RecordedAt          time.Time `bun:"recorded_at,notnull"`
}

// NewBunStore wraps db. Call EnsureSchema before first use.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

// EnsureSchema creates the digest table when it does not exist.
func (s *BunStore) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return errBunStoreDB
	}
	if _, err := s.db.NewCreateTable().Model((*digestModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("digests: create table: %w", err)
	}
	return nil
}

func (s *BunStore) Load(ctx context.Context) (map[string]Record, error) {
	if s.db == nil {
		return nil, errBunStoreDB
	}
	var models []digestModel
	if err := s.db.NewSelect().Model(&models).Order("post_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("digests: load: %w", err)
	}
	out := make(map[string]Record, len(models))
	for _, m := range models {
		out[m.PostID] = Record{
			PostID:              m.PostID,
			Slug:                m.Slug,
			Route:               m.Route,
			Output:              m.Output,
			Digest:              m.Digest,
			SourceChecksum:      m.SourceChecksum,
			RendererFingerprint: m.RendererFingerprint,
			RecordedAt:          m.RecordedAt,
		}
	}
	return out, nil
}

// Save replaces every row in a single transaction.
func (s *BunStore) Save(ctx context.Context, records []Record) error {
	if s.db == nil {
		return errBunStoreDB
	}
	models := make([]digestModel, 0, len(records))
	for _, rec := range records {
		models = append(models, digestModel{
			PostID:              rec.PostID,
			Slug:                rec.Slug,
			Route:               rec.Route,
			Output:              rec.Output,
			Digest:              rec.Digest,
			SourceChecksum:      rec.SourceChecksum,
			RendererFingerprint: rec.RendererFingerprint,
			RecordedAt:          rec.RecordedAt.UTC(),
		})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*digestModel)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("digests: clear: %w", err)
		}
		if len(models) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&models).Exec(ctx); err != nil {
			return fmt.Errorf("digests: insert: %w", err)
		}
		return nil
	})
}

func (s *BunStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Config selects the store implementation.
type Config struct {
	// Driver is one of file, memory, sqlite or postgres.
	Driver string
	// Path is the manifest location for the file driver.
	Path string
	// DSN is the connection string for SQL drivers.
	DSN string
}

// Open builds the store selected by cfg. SQL stores have their schema
// ensured before they are returned.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, errors.New("digests: file store requires a path")
		}
		return NewFileStore(cfg.Path), nil
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3":
		return openSQL(ctx, "sqlite3", cfg.DSN, func(sqldb *sql.DB) *bun.DB {
			sqldb.SetMaxOpenConns(1)
			return bun.NewDB(sqldb, sqlitedialect.New())
		})
	case "postgres", "postgresql":
		return openSQL(ctx, "postgres", cfg.DSN, func(sqldb *sql.DB) *bun.DB {
			return bun.NewDB(sqldb, pgdialect.New())
		})
	default:
		return nil, fmt.Errorf("digests: unsupported driver %q", cfg.Driver)
	}
}

func openSQL(ctx context.Context, driver, dsn string, wrap func(*sql.DB) *bun.DB) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("digests: %s store requires a dsn", driver)
	}
	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("digests: open %s: %w", driver, err)
	}
	store := NewBunStore(wrap(sqldb))
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
