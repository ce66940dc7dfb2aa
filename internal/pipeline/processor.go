package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/discovery"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/vectorindex"
)

// ErrNoText is returned when no document produced any indexable text.
var ErrNoText = fmt.Errorf("pipeline: no document produced text: %w", common.ErrUnprocessable)

type TextExtractor interface {
	Extract(ctx context.Context, doc entity.SourceDocument) (entity.DocumentResult, bool)
}

type Splitter interface {
	Split(fragments []entity.TextFragment) []entity.Chunk
}

type FieldDiscoverer interface {
	Discover(ctx context.Context, docs []entity.DocumentResult) ([]entity.FieldSpec, error)
}

type RecordExtractor interface {
	ExtractAll(ctx context.Context, sourceIDs []string, specs []entity.FieldSpec) []entity.ExtractedRecord
}

type AnomalyDetector interface {
	Detect(records []entity.ExtractedRecord) []entity.AnomalyFinding
}

type EventExtractor interface {
	Extract(ctx context.Context, doc entity.DocumentResult) ([]entity.Event, error)
}

// Processor runs extraction, chunking, indexing, field discovery, structured extraction,
// anomaly detection and, when configured, event extraction over one document set.
type Processor struct {
	logger    *slog.Logger
	text      TextExtractor
	splitter  Splitter
	index     vectorindex.Index
	discovery FieldDiscoverer
	records   RecordExtractor
	anomalies AnomalyDetector
	events    EventExtractor
	fields    []entity.FieldSpec
	fallback  []entity.FieldSpec
}

type Option func(*Processor)

// WithFieldSpecs skips discovery and extracts exactly specs.
func WithFieldSpecs(specs []entity.FieldSpec) Option {
	return func(p *Processor) { p.fields = specs }
}

// WithFallbackFields replaces the field set used when discovery fails.
func WithFallbackFields(specs []entity.FieldSpec) Option {
	return func(p *Processor) { p.fallback = specs }
}

func WithEvents(e EventExtractor) Option {
	return func(p *Processor) { p.events = e }
}

func NewProcessor(
	logger *slog.Logger,
	text TextExtractor,
	splitter Splitter,
	index vectorindex.Index,
	discoverer FieldDiscoverer,
	records RecordExtractor,
	anomalies AnomalyDetector,
	opts ...Option,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:    logger,
		text:      text,
		splitter:  splitter,
		index:     index,
		discovery: discoverer,
		records:   records,
		anomalies: anomalies,
		fallback:  discovery.DefaultContractFields(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes docs end to end. Only index construction (and cancellation) is fatal; every
// other failure degrades to sentinels or warnings recorded on the returned Context.
func (p *Processor) Run(ctx context.Context, docs []entity.SourceDocument) (*Context, error) {
	start := time.Now()
	pc := &Context{
		BatchID:   uuid.New().String(),
		Documents: append([]entity.SourceDocument(nil), docs...),
		Index:     p.index,
	}
	ctx = common.WithBatchID(ctx, pc.BatchID)
	logger := common.LoggerWith(ctx, p.logger)

	logger.Info("pipeline.start", "documents", len(docs))

	stages := []struct {
		name string
		run  func(context.Context, *Context) error
	}{
		{"extract", p.extractStage},
		{"chunk", p.chunkStage},
		{"index", p.indexStage},
		{"discover", p.discoverStage},
		{"extraction", p.extractionStage},
		{"anomaly", p.anomalyStage},
		{"events", p.eventsStage},
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return pc, err
		}
		stageStart := time.Now()
		if err := st.run(ctx, pc); err != nil {
			logger.Error("pipeline.stage.failed", "stage", st.name, "error", err)
			return pc, err
		}
		logger.Debug("pipeline.stage.ok", "stage", st.name, "elapsed_ms", time.Since(stageStart).Milliseconds())
	}

	logger.Info("pipeline.ok",
		"documents", len(pc.Documents),
		"processed", len(pc.Processed()),
		"chunks", len(pc.Chunks),
		"fields", len(pc.Specs),
		"findings", len(pc.Findings),
		"warnings", len(pc.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pc, nil
}

func (p *Processor) extractStage(ctx context.Context, pc *Context) error {
	pc.Results = make([]entity.DocumentResult, 0, len(pc.Documents))
	for i, doc := range pc.Documents {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, ok := p.text.Extract(ctx, doc)
		if !ok {
			pc.warnf("%s: unprocessable: %s", doc.ID, res.Err)
		}
		pc.Results = append(pc.Results, res)
		// bytes are not needed past this point
		pc.Documents[i].Data = nil
	}
	return nil
}

func (p *Processor) chunkStage(_ context.Context, pc *Context) error {
	for _, r := range pc.Processed() {
		pc.Chunks = append(pc.Chunks, p.splitter.Split(r.Fragments)...)
	}
	return nil
}

func (p *Processor) indexStage(ctx context.Context, pc *Context) error {
	if len(pc.Chunks) == 0 {
		return ErrNoText
	}
	if err := p.index.Build(ctx, pc.Chunks); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	return nil
}

func (p *Processor) discoverStage(ctx context.Context, pc *Context) error {
	if len(p.fields) > 0 {
		pc.Specs = p.fields
		return nil
	}
	specs, err := p.discovery.Discover(ctx, pc.Processed())
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		pc.warnf("field discovery failed, using default fields: %v", err)
		common.LoggerWith(ctx, p.logger).Warn("pipeline.discover.fallback", "error", err, "fields", len(p.fallback))
		specs = p.fallback
	}
	if len(specs) == 0 {
		return common.NewAppError("NO_FIELDS", "no fields to extract", common.ErrInvalidInput)
	}
	pc.Specs = specs
	return nil
}

func (p *Processor) extractionStage(ctx context.Context, pc *Context) error {
	pc.Records = p.records.ExtractAll(ctx, pc.SourceIDs(), pc.Specs)
	for _, r := range pc.Records {
		if r.ValidationError != "" {
			pc.warnf("%s: validation: %s", r.SourceID, r.ValidationError)
		}
	}
	return nil
}

func (p *Processor) anomalyStage(_ context.Context, pc *Context) error {
	pc.Findings = p.anomalies.Detect(pc.Records)
	return nil
}

func (p *Processor) eventsStage(ctx context.Context, pc *Context) error {
	if p.events == nil {
		return nil
	}
	for _, r := range pc.Processed() {
		if err := ctx.Err(); err != nil {
			return err
		}
		evs, err := p.events.Extract(ctx, r)
		if err != nil {
			pc.warnf("%s: events: %v", r.SourceID, err)
			continue
		}
		pc.Events = append(pc.Events, evs...)
	}
	return nil
}
