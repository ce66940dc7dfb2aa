package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/contracts-analyzer/internal/cache"
	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm/gemini"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm/openai"
	"github.com/joseph-ayodele/contracts-analyzer/internal/repository"
	"github.com/joseph-ayodele/contracts-analyzer/internal/vectorindex"
)

// app holds what every subcommand shares: config, logger and lazily opened resources.
type app struct {
	cfg    *common.Config
	logger *slog.Logger
	out    io.Writer

	db   *sql.DB
	pool *pgxpool.Pool
}

// provider is a model backend able to chat, read page images and embed.
type provider interface {
	llm.TextModel
	llm.VisionModel
	llm.Embedder
}

type models struct {
	text      llm.TextModel
	vision    llm.VisionModel
	embedder  llm.Embedder
	textName  string
	embedName string
}

func (a *app) sqlite(ctx context.Context) (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := repository.OpenSQLite(ctx, a.cfg.Storage.SQLitePath, a.logger)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// cacheStore returns nil when caching is disabled; every cache consumer treats nil as a bypass.
func (a *app) cacheStore(ctx context.Context) (cache.Store, error) {
	if !a.cfg.Storage.CacheEnabled {
		return nil, nil
	}
	db, err := a.sqlite(ctx)
	if err != nil {
		return nil, err
	}
	return repository.NewCacheStore(db), nil
}

func (a *app) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	pool, err := repository.Open(ctx, repository.ConfigFrom(a.cfg.Database), a.logger)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	return pool, nil
}

func (a *app) usePostgres() bool {
	return a.cfg.Database.DSN != ""
}

func (a *app) models(ctx context.Context) (*models, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	chat, err := a.provider(ctx, a.cfg.LLM.Provider, a.cfg.LLM.APIKey)
	if err != nil {
		return nil, err
	}
	emb := chat
	if a.cfg.Embedding.Provider != a.cfg.LLM.Provider {
		if emb, err = a.provider(ctx, a.cfg.Embedding.Provider, apiKeyFor(a.cfg.Embedding.Provider)); err != nil {
			return nil, err
		}
	}

	return &models{
		text:      chat,
		vision:    chat,
		embedder:  emb,
		textName:  a.cfg.LLM.Provider + "/" + a.cfg.LLM.Model,
		embedName: a.cfg.Embedding.Provider + "/" + a.cfg.Embedding.Model,
	}, nil
}

func (a *app) provider(ctx context.Context, name, apiKey string) (provider, error) {
	switch name {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:              apiKey,
			BaseURL:             a.cfg.LLM.BaseURL,
			Model:               a.cfg.LLM.Model,
			VisionModel:         a.cfg.LLM.VisionModel,
			EmbeddingModel:      a.cfg.Embedding.Model,
			EmbeddingDimensions: a.cfg.Embedding.Dimensions,
			Temperature:         a.cfg.LLM.Temperature,
			Timeout:             a.cfg.LLM.Timeout,
		}, a.logger), nil
	default:
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:              apiKey,
			Model:               a.cfg.LLM.Model,
			VisionModel:         a.cfg.LLM.VisionModel,
			EmbeddingModel:      a.cfg.Embedding.Model,
			EmbeddingDimensions: int32(a.cfg.Embedding.Dimensions),
			Temperature:         a.cfg.LLM.Temperature,
		}, a.logger)
	}
}

func apiKeyFor(provider string) string {
	if provider == "openai" {
		return os.Getenv("OPENAI_API_KEY")
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("GOOGLE_API_KEY")
}

func (a *app) indexConfig() vectorindex.Config {
	return vectorindex.Config{BatchSize: a.cfg.Embedding.BatchSize}
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("sqlite.close.failed", "error", err)
		}
		a.db = nil
	}
	if a.pool != nil {
		repository.Close(a.pool, a.logger)
		a.pool = nil
	}
}
