package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

// PGIndex stores chunks for one collection in Postgres with pgvector.
// The pool must have pgvector types registered (see repository.Open).
type PGIndex struct {
	pool       *pgxpool.Pool
	collection string
	dims       int
	emb        *embedder
	logger     *slog.Logger
}

func NewPGIndex(pool *pgxpool.Pool, collection string, dims int, emb llm.Embedder, cfg Config, logger *slog.Logger, opts ...Option) *PGIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGIndex{
		pool:       pool,
		collection: collection,
		dims:       dims,
		emb:        newEmbedder(emb, cfg, logger, opts),
		logger:     logger,
	}
}

// EnsureSchema creates the chunk table and its indexes when missing.
func (p *PGIndex) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS contract_chunks (
			id           BIGSERIAL PRIMARY KEY,
			collection   TEXT NOT NULL,
			source_id    TEXT NOT NULL,
			page_index   INT NOT NULL,
			method       TEXT NOT NULL,
			chunk_index  INT NOT NULL,
			chunk_offset INT NOT NULL,
			content      TEXT NOT NULL,
			embedding    vector(%d) NOT NULL
		)`, p.dims),
		`CREATE INDEX IF NOT EXISTS idx_contract_chunks_source ON contract_chunks (collection, source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_contract_chunks_embedding ON contract_chunks USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, s := range stmts {
		if _, err := p.pool.Exec(ctx, s); err != nil {
			return common.NewAppError("DB_SCHEMA", "create contract_chunks", fmt.Errorf("%w: %w", common.ErrDatabase, err))
		}
	}
	return nil
}

// Build replaces the collection's rows in one transaction.
func (p *PGIndex) Build(ctx context.Context, chunks []entity.Chunk) error {
	start := time.Now()
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := p.emb.embedAll(ctx, texts)
	if err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM contract_chunks WHERE collection = $1`, p.collection); err != nil {
		return fmt.Errorf("%w: clear collection: %w", common.ErrDatabase, err)
	}

	batch := &pgx.Batch{}
	for i, c := range chunks {
		if len(vecs[i]) != p.dims {
			return fmt.Errorf("%w: dimension %d, table expects %d", ErrEmbedding, len(vecs[i]), p.dims)
		}
		batch.Queue(`INSERT INTO contract_chunks
			(collection, source_id, page_index, method, chunk_index, chunk_offset, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.collection, c.SourceID, c.PageIndex, string(c.Method), c.Index, c.Offset, c.Text, pgvector.NewVector(vecs[i]))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%w: insert chunks: %w", common.ErrDatabase, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", common.ErrDatabase, err)
	}

	p.logger.Info("vectorindex.pg.build.ok",
		"collection", p.collection,
		"chunks", len(chunks),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Search orders by cosine distance; ties fall back to insertion id.
func (p *PGIndex) Search(ctx context.Context, query string, k int, sourceID string) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	qv, err := p.emb.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT source_id, page_index, method, chunk_index, chunk_offset, content,
		       1 - (embedding <=> $3) AS score
		FROM contract_chunks
		WHERE collection = $1 AND ($2 = '' OR source_id = $2)
		ORDER BY embedding <=> $3, id
		LIMIT $4`,
		p.collection, sourceID, pgvector.NewVector(qv), k)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h      Hit
			method string
		)
		if err := rows.Scan(&h.Chunk.SourceID, &h.Chunk.PageIndex, &method, &h.Chunk.Index,
			&h.Chunk.Offset, &h.Chunk.Text, &h.Score); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", common.ErrDatabase, err)
		}
		h.Chunk.Method = constants.ExtractionMethod(method)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", common.ErrDatabase, err)
	}
	return hits, nil
}
