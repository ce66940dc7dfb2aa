// Package discovery proposes the comparable fields extracted from every document in a batch.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/cache"
	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

const (
	MinFields          = 5
	MaxFields          = 7
	DefaultSampleChars = 25000
	DefaultTimeout     = 2 * time.Minute
)

// ErrDiscoveryFailed means no valid field set came back, even after the repair pass.
var ErrDiscoveryFailed = errors.New("discovery: no valid field set")

type Config struct {
	SampleChars int // total sample budget across all documents
	MinFields   int
	MaxFields   int
	Timeout     time.Duration // per model call, repair pass included
}

func (c Config) withDefaults() Config {
	if c.SampleChars <= 0 {
		c.SampleChars = DefaultSampleChars
	}
	if c.MinFields <= 0 {
		c.MinFields = MinFields
	}
	if c.MaxFields < c.MinFields {
		c.MaxFields = max(MaxFields, c.MinFields)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

type Discoverer struct {
	model     llm.TextModel
	repair    llm.TextModel
	cfg       Config
	store     cache.Store
	modelName string
	logger    *slog.Logger
}

type Option func(*Discoverer)

// WithRepairModel routes the schema-repair pass to a different model.
func WithRepairModel(m llm.TextModel) Option {
	return func(d *Discoverer) { d.repair = m }
}

// WithCache memoizes the field set per (model, sample).
func WithCache(store cache.Store, modelName string) Option {
	return func(d *Discoverer) {
		d.store = store
		d.modelName = modelName
	}
}

func New(model llm.TextModel, cfg Config, logger *slog.Logger, opts ...Option) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Discoverer{model: model, cfg: cfg.withDefaults(), logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type fieldsReply struct {
	Fields []struct {
		Key      string `json:"key"`
		Question string `json:"question"`
		Type     string `json:"type"`
	} `json:"fields"`
}

// Discover runs once per batch. The returned specs are meant to stay fixed for the whole pass.
func (d *Discoverer) Discover(ctx context.Context, docs []entity.DocumentResult) ([]entity.FieldSpec, error) {
	start := time.Now()
	logger := common.LoggerWith(ctx, d.logger)

	sample := BuildSample(docs, d.cfg.SampleChars)
	if strings.TrimSpace(sample) == "" {
		return nil, fmt.Errorf("%w: no extracted text to sample", ErrDiscoveryFailed)
	}
	logger.Info("discovery.start", "documents", len(docs), "sample_chars", len([]rune(sample)))

	key := cache.StringKey("discovery/v1", d.modelName, strconv.Itoa(d.cfg.MinFields), strconv.Itoa(d.cfg.MaxFields), sample)
	specs, hit, err := cache.GetOrCompute(ctx, d.store, key, func(ctx context.Context) ([]entity.FieldSpec, error) {
		p := llm.BuildDiscoveryPrompt(sample, d.cfg.MinFields, d.cfg.MaxFields)
		p.Schema = llm.BuildDiscoveryJSONSchema(d.cfg.MinFields, d.cfg.MaxFields)
		doc, err := llm.GenerateStructured(ctx, d.timed(d.model), d.timed(d.repair), p, logger)
		if err != nil {
			return nil, err
		}
		return parseSpecs(doc)
	})
	if err != nil {
		logger.Error("discovery.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}

	keys := make([]string, len(specs))
	for i, s := range specs {
		keys[i] = s.Key
	}
	logger.Info("discovery.ok",
		"fields", keys,
		"cache_hit", hit,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return specs, nil
}

// timed bounds every call on m by the configured timeout. A nil model stays nil.
func (d *Discoverer) timed(m llm.TextModel) llm.TextModel {
	if m == nil {
		return nil
	}
	return llm.TextModelFunc(func(ctx context.Context, p llm.Prompt) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
		return m.Generate(ctx, p)
	})
}

// parseSpecs normalizes keys to snake_case and makes them unique.
func parseSpecs(doc []byte) ([]entity.FieldSpec, error) {
	var reply fieldsReply
	if err := json.Unmarshal(doc, &reply); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}

	seen := make(map[string]bool, len(reply.Fields))
	specs := make([]entity.FieldSpec, 0, len(reply.Fields))
	for _, f := range reply.Fields {
		base := common.ToSnakeCase(f.Key)
		if base == "" {
			base = "field"
		}
		key := base
		for n := 2; seen[key]; n++ {
			key = fmt.Sprintf("%s_%d", base, n)
		}
		seen[key] = true
		ft, _ := constants.CanonicalizeFieldType(f.Type)
		specs = append(specs, entity.FieldSpec{
			Key:      key,
			Question: strings.TrimSpace(f.Question),
			Type:     ft,
		})
	}
	if len(specs) == 0 {
		return nil, errors.New("empty field list")
	}
	return specs, nil
}
