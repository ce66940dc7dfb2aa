package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/repository"
	"github.com/joseph-ayodele/contracts-analyzer/internal/vectorindex"
)

type searchOptions struct {
	collection string
	source     string
	limit      int
	json       bool
}

func newSearchCmd(a *app) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search one document of a saved collection",
		Long: `Ranks the chunks of a saved collection against the query. Results are always
restricted to the document named by --source.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			return a.runSearch(cmd.Context(), opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.collection, "collection", "", "collection name (required)")
	cmd.Flags().StringVar(&opts.source, "source", "", "document id to search within (required)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 5, "maximum number of results")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output results as JSON")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func (a *app) runSearch(ctx context.Context, opts *searchOptions, query string) error {
	if strings.TrimSpace(query) == "" {
		return common.InvalidArgumentError("query must not be empty")
	}
	if opts.limit <= 0 {
		return common.InvalidArgumentErrorf("--limit must be positive, got %d", opts.limit)
	}

	db, err := a.sqlite(ctx)
	if err != nil {
		return err
	}
	entries, sources, err := repository.NewCollectionStore(db, a.logger).Load(ctx, opts.collection)
	if err != nil {
		return err
	}
	if !contains(sources, opts.source) {
		return common.NotFoundError(fmt.Sprintf("document %q is not part of collection %q (known: %s)",
			opts.source, opts.collection, strings.Join(sources, ", ")))
	}

	m, err := a.models(ctx)
	if err != nil {
		return err
	}

	var index vectorindex.Index
	if a.usePostgres() {
		pool, err := a.postgres(ctx)
		if err != nil {
			return err
		}
		index = vectorindex.NewPGIndex(pool, opts.collection, a.cfg.Embedding.Dimensions, m.embedder, a.indexConfig(), a.logger)
	} else {
		index = vectorindex.LoadMemoryIndex(m.embedder, entries, a.logger)
	}

	hits, err := index.Search(ctx, query, opts.limit, opts.source)
	if err != nil {
		return err
	}

	if opts.json {
		data, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(a.out, string(data))
		return nil
	}

	if len(hits) == 0 {
		fmt.Fprintln(a.out, "No results found.")
		return nil
	}
	for i, h := range hits {
		fmt.Fprintf(a.out, "  [%d] %s page %d (%.3f)\n", i+1, h.Chunk.SourceID, h.Chunk.PageIndex+1, h.Score)
		fmt.Fprintf(a.out, "      %s\n\n", snippet(h.Chunk.Text, 240))
	}
	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
