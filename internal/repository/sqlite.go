package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
)

const sqlitePragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
	name        TEXT PRIMARY KEY,
	chunk_count INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS collection_sources (
	collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	source_id  TEXT NOT NULL,
	PRIMARY KEY (collection, position)
);

CREATE TABLE IF NOT EXISTS collection_chunks (
	collection  TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	source_id   TEXT NOT NULL,
	page_index  INTEGER NOT NULL,
	chunk_index INTEGER NOT NULL,
	char_offset INTEGER NOT NULL,
	method      TEXT NOT NULL,
	content     TEXT NOT NULL,
	embedding   BLOB NOT NULL,
	PRIMARY KEY (collection, position)
);

CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	created_at TEXT NOT NULL
);
`

// OpenSQLite opens (creating if needed) the local database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, common.NewAppError("DB_CONFIG", "create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path+sqlitePragmas)
	if err != nil {
		return nil, common.NewAppError("DB_CONNECT", "open sqlite", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	// one writer keeps WAL contention out of the picture
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, common.NewAppError("DB_SCHEMA", "apply sqlite schema", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}

	logger.Info("sqlite.open.ok", "path", path, "elapsed_ms", time.Since(start).Milliseconds())
	return db, nil
}
