package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/vectorindex"
)

var (
	ErrCollectionNotFound   = fmt.Errorf("collection: %w", common.ErrNotFound)
	ErrCollectionIncomplete = errors.New("collection: incomplete")
)

// CollectionInfo summarises one saved collection.
type CollectionInfo struct {
	Name      string
	Chunks    int
	Sources   int
	CreatedAt time.Time
}

// CollectionStore persists built vector indexes together with their ordered source list.
type CollectionStore interface {
	Save(ctx context.Context, name string, entries []vectorindex.Entry, sources []string) error
	Load(ctx context.Context, name string) ([]vectorindex.Entry, []string, error)
	List(ctx context.Context) ([]CollectionInfo, error)
}

type collectionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewCollectionStore(db *sql.DB, logger *slog.Logger) CollectionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &collectionStore{db: db, logger: logger}
}

// Save replaces any collection of the same name in one transaction.
func (s *collectionStore) Save(ctx context.Context, name string, entries []vectorindex.Entry, sources []string) error {
	start := time.Now()
	if name == "" {
		return common.NewAppError("INVALID_INPUT", "collection name is required", common.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("%w: delete collection: %w", common.ErrDatabase, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (name, chunk_count, created_at) VALUES (?, ?, ?)`,
		name, len(entries), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("%w: insert collection: %w", common.ErrDatabase, err)
	}

	srcStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO collection_sources (collection, position, source_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare sources: %w", common.ErrDatabase, err)
	}
	defer srcStmt.Close()
	for i, src := range sources {
		if _, err := srcStmt.ExecContext(ctx, name, i, src); err != nil {
			return fmt.Errorf("%w: insert source: %w", common.ErrDatabase, err)
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO collection_chunks
			(collection, position, source_id, page_index, chunk_index, char_offset, method, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare chunks: %w", common.ErrDatabase, err)
	}
	defer chunkStmt.Close()
	for i, e := range entries {
		c := e.Chunk
		if _, err := chunkStmt.ExecContext(ctx, name, i, c.SourceID, c.PageIndex, c.Index, c.Offset,
			string(c.Method), c.Text, vectorindex.EncodeVector(e.Vector)); err != nil {
			return fmt.Errorf("%w: insert chunk: %w", common.ErrDatabase, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", common.ErrDatabase, err)
	}
	s.logger.Info("collection.save.ok", "collection", name, "chunks", len(entries), "sources", len(sources),
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// Load returns ErrCollectionNotFound for unknown names and ErrCollectionIncomplete when the
// stored rows do not match the declared chunk count or no sources were recorded.
func (s *collectionStore) Load(ctx context.Context, name string) ([]vectorindex.Entry, []string, error) {
	start := time.Now()

	var declared int
	err := s.db.QueryRowContext(ctx, `SELECT chunk_count FROM collections WHERE name = ?`, name).Scan(&declared)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load collection: %w", common.ErrDatabase, err)
	}

	sources, err := s.sources(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.entries(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	if len(entries) != declared || len(sources) == 0 {
		s.logger.Warn("collection.load.incomplete", "collection", name,
			"declared", declared, "stored", len(entries), "sources", len(sources))
		return nil, nil, fmt.Errorf("%w: %q has %d of %d chunks and %d sources",
			ErrCollectionIncomplete, name, len(entries), declared, len(sources))
	}

	s.logger.Info("collection.load.ok", "collection", name, "chunks", len(entries), "sources", len(sources),
		"elapsed_ms", time.Since(start).Milliseconds())
	return entries, sources, nil
}

func (s *collectionStore) sources(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id FROM collection_sources WHERE collection = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("%w: query sources: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("%w: scan source: %w", common.ErrDatabase, err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *collectionStore) entries(ctx context.Context, name string) ([]vectorindex.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, page_index, chunk_index, char_offset, method, content, embedding
		FROM collection_chunks WHERE collection = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("%w: query chunks: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []vectorindex.Entry
	for rows.Next() {
		var (
			c      entity.Chunk
			method string
			blob   []byte
		)
		if err := rows.Scan(&c.SourceID, &c.PageIndex, &c.Index, &c.Offset, &method, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %w", common.ErrDatabase, err)
		}
		vec, ok := vectorindex.DecodeVector(blob)
		if !ok {
			return nil, fmt.Errorf("%w: chunk %s#%d has a malformed vector", ErrCollectionIncomplete, c.SourceID, c.Index)
		}
		c.Method = constants.ExtractionMethod(method)
		out = append(out, vectorindex.Entry{Chunk: c, Vector: vec})
	}
	return out, rows.Err()
}

func (s *collectionStore) List(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, c.chunk_count, c.created_at,
		       (SELECT COUNT(*) FROM collection_sources cs WHERE cs.collection = c.name)
		FROM collections c ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list collections: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []CollectionInfo
	for rows.Next() {
		var (
			info    CollectionInfo
			created string
		)
		if err := rows.Scan(&info.Name, &info.Chunks, &created, &info.Sources); err != nil {
			return nil, fmt.Errorf("%w: scan collection: %w", common.ErrDatabase, err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, info)
	}
	return out, rows.Err()
}
