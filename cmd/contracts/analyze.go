package main

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/contracts-analyzer/internal/anomaly"
	"github.com/joseph-ayodele/contracts-analyzer/internal/cache"
	"github.com/joseph-ayodele/contracts-analyzer/internal/chunker"
	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/discovery"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/events"
	"github.com/joseph-ayodele/contracts-analyzer/internal/export"
	"github.com/joseph-ayodele/contracts-analyzer/internal/extraction"
	"github.com/joseph-ayodele/contracts-analyzer/internal/ingest"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
	"github.com/joseph-ayodele/contracts-analyzer/internal/pipeline"
	"github.com/joseph-ayodele/contracts-analyzer/internal/repository"
	"github.com/joseph-ayodele/contracts-analyzer/internal/textextract"
	"github.com/joseph-ayodele/contracts-analyzer/internal/vectorindex"
)

type analyzeOptions struct {
	dir        string
	out        string
	collection string
	fields     string
	events     bool
	hidden     bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Extract, index and compare every contract in a directory",
		Long: `Runs text extraction, chunking, indexing, field discovery, structured extraction
and anomaly detection over the PDF and Word contracts in --dir, then writes an XLSX report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			return a.runAnalyze(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.dir, "dir", "", "directory of contracts to analyze (required)")
	cmd.Flags().StringVar(&opts.out, "out", "", "output XLSX path (default <dir>/../contracts.xlsx)")
	cmd.Flags().StringVar(&opts.collection, "collection", "", "save the built index under this collection name")
	cmd.Flags().StringVar(&opts.fields, "fields", "auto", "auto (discover from documents) or default (built-in contract fields)")
	cmd.Flags().BoolVar(&opts.events, "events", false, "also extract dated events and deadlines")
	cmd.Flags().BoolVar(&opts.hidden, "include-hidden", false, "include hidden files and directories")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func (a *app) runAnalyze(ctx context.Context, opts *analyzeOptions) error {
	if opts.fields != "auto" && opts.fields != "default" {
		return common.InvalidArgumentErrorf("--fields must be auto or default, got %q", opts.fields)
	}
	if opts.out == "" {
		opts.out = filepath.Join(filepath.Dir(filepath.Clean(opts.dir)), "contracts.xlsx")
	}

	docs, _, stats, err := ingest.ScanDirectory(ctx, opts.dir, nil, !opts.hidden, a.logger)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return common.NewAppError("NO_DOCUMENTS", fmt.Sprintf("no contracts found in %s", opts.dir), common.ErrNotFound)
	}

	m, err := a.models(ctx)
	if err != nil {
		return err
	}
	store, err := a.cacheStore(ctx)
	if err != nil {
		return err
	}
	index, err := a.buildIndex(ctx, opts.collection, m, store)
	if err != nil {
		return err
	}

	cfg := a.cfg
	limiter := llm.NewRateLimiter(cfg.LLM.CallInterval)
	visionLimiter := llm.NewRateLimiter(cfg.Extraction.VisionInterval)

	text := textextract.NewExtractor(
		textextract.Config{MinChars: cfg.Extraction.MinChars, TempDir: cfg.Extraction.TempDir},
		textextract.DefaultTiers(cfg.Extraction, m.vision, visionLimiter, nil, a.logger),
		a.logger,
		textextract.WithCache(store),
	)
	disc := discovery.New(m.text, discovery.Config{SampleChars: cfg.Analysis.SampleChars, Timeout: cfg.LLM.Timeout}, a.logger,
		discovery.WithCache(store, m.textName))
	records := extraction.New(index, m.text, limiter, extraction.Config{
		TopK:        cfg.Analysis.TopK,
		Timeout:     cfg.LLM.Timeout,
		Concurrency: cfg.LLM.Concurrency,
	}, a.logger, extraction.WithCache(store, m.textName))
	detector := anomaly.New(anomaly.Config{
		StdDevs:          cfg.Analysis.StdDevs,
		RareThreshold:    cfg.Analysis.RareThreshold,
		MinRows:          cfg.Analysis.MinRows,
		MissingDominance: cfg.Analysis.MissingDominance,
	}, a.logger)

	var popts []pipeline.Option
	if opts.fields == "default" {
		popts = append(popts, pipeline.WithFieldSpecs(discovery.DefaultContractFields()))
	}
	if opts.events {
		popts = append(popts, pipeline.WithEvents(events.New(m.text, limiter, cfg.LLM.Timeout, a.logger,
			events.WithCache(store, m.textName))))
	}

	proc := pipeline.NewProcessor(a.logger, text,
		chunker.New(chunker.WithChunkSize(cfg.Chunking.Size), chunker.WithOverlap(cfg.Chunking.Overlap)),
		index, disc, records, detector, popts...)

	pc, err := proc.Run(ctx, docs)
	if err != nil {
		if pc != nil {
			a.printDocuments(pc.Results)
		}
		return err
	}

	if opts.collection != "" {
		if err := a.saveCollection(ctx, opts.collection, pc); err != nil {
			return err
		}
	}

	report := export.Report{
		Specs:     pc.Specs,
		Records:   pc.Records,
		Findings:  pc.Findings,
		Documents: pc.Results,
		Events:    pc.Events,
	}
	if err := export.NewService(a.logger).WriteFile(opts.out, report); err != nil {
		return err
	}

	a.printDocuments(pc.Results)
	a.printFindings(pc.Findings)
	for _, w := range pc.Warnings {
		fmt.Fprintf(a.out, "warning: %s\n", w)
	}
	fmt.Fprintf(a.out, "\n%d of %d documents processed (%d failed to load), %d fields, report written to %s\n",
		len(pc.Processed()), len(docs), stats.Failed, len(pc.Specs), opts.out)
	return nil
}

// buildIndex picks pgvector when a database is configured and the in-memory index otherwise.
func (a *app) buildIndex(ctx context.Context, collection string, m *models, store cache.Store) (vectorindex.Index, error) {
	opt := vectorindex.WithEmbeddingCache(store, m.embedName)
	if !a.usePostgres() {
		return vectorindex.NewMemoryIndex(m.embedder, a.indexConfig(), a.logger, opt), nil
	}
	pool, err := a.postgres(ctx)
	if err != nil {
		return nil, err
	}
	if collection == "" {
		collection = "default"
	}
	idx := vectorindex.NewPGIndex(pool, collection, a.cfg.Embedding.Dimensions, m.embedder, a.indexConfig(), a.logger, opt)
	if err := idx.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// saveCollection persists the in-memory index with its ordered sources. A pgvector index is
// already durable, so only its source list is recorded.
func (a *app) saveCollection(ctx context.Context, name string, pc *pipeline.Context) error {
	db, err := a.sqlite(ctx)
	if err != nil {
		return err
	}
	var entries []vectorindex.Entry
	if mem, ok := pc.Index.(*vectorindex.MemoryIndex); ok {
		entries = mem.Entries()
	}
	return repository.NewCollectionStore(db, a.logger).Save(ctx, name, entries, pc.SourceIDs())
}

func (a *app) printDocuments(results []entity.DocumentResult) {
	w := tabwriter.NewWriter(a.out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENT\tSTATUS\tMETHOD\tPAGES\tERROR")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.SourceID, r.Status, r.Method, r.Pages, r.Err)
	}
	_ = w.Flush()
}

func (a *app) printFindings(findings []entity.AnomalyFinding) {
	fmt.Fprintln(a.out)
	for _, f := range findings {
		if f.Severity != entity.SeverityAnomaly {
			continue
		}
		fmt.Fprintf(a.out, "anomaly: %s\n", f.Message)
		fmt.Fprintf(a.out, "         document=%s %s\n", f.SourceID, f.Reference)
	}
}
