// Package events pulls dated obligations (deadlines, due dates, renewals) out of contract text.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/contracts-analyzer/internal/cache"
	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

// DefaultMaxChars bounds the text sent per document.
const DefaultMaxChars = 15000

type Extractor struct {
	model     llm.TextModel
	limiter   *llm.RateLimiter
	maxChars  int
	timeout   time.Duration
	store     cache.Store
	modelName string
	logger    *slog.Logger
}

type Option func(*Extractor)

func WithCache(store cache.Store, modelName string) Option {
	return func(e *Extractor) {
		e.store = store
		e.modelName = modelName
	}
}

func WithMaxChars(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxChars = n
		}
	}
}

func New(model llm.TextModel, limiter *llm.RateLimiter, timeout time.Duration, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	e := &Extractor{model: model, limiter: limiter, maxChars: DefaultMaxChars, timeout: timeout, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type eventsReply struct {
	Events []struct {
		Description string `json:"description"`
		Date        string `json:"date"`
		Excerpt     string `json:"excerpt"`
	} `json:"events"`
}

// Extract returns the document's dated events sorted by date. Failures are never fatal:
// they come back as an empty list plus the error for the caller to record as a warning.
func (e *Extractor) Extract(ctx context.Context, doc entity.DocumentResult) ([]entity.Event, error) {
	if !doc.OK() {
		return nil, nil
	}
	start := time.Now()
	ctx = common.WithSourceID(ctx, doc.SourceID)
	logger := common.LoggerWith(ctx, e.logger)

	text := []rune(doc.Text())
	if len(text) > e.maxChars {
		text = text[:e.maxChars]
	}

	key := cache.StringKey("events/v1", e.modelName, string(text))
	out, hit, err := cache.GetOrCompute(ctx, e.store, key, func(ctx context.Context) ([]entity.Event, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		p := llm.BuildEventsPrompt(string(text))
		p.Schema = llm.BuildEventsJSONSchema()
		raw, err := llm.GenerateStructured(callCtx, e.model, nil, p, logger)
		if err != nil {
			return nil, err
		}
		return parseEvents(doc.SourceID, raw)
	})
	if err != nil {
		logger.Warn("events.extract.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	for i := range out {
		out[i].SourceID = doc.SourceID
	}

	logger.Info("events.extract.ok", "events", len(out), "cache_hit", hit,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// parseEvents drops entries whose date is not a real calendar day.
func parseEvents(sourceID string, raw []byte) ([]entity.Event, error) {
	var reply eventsReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	out := make([]entity.Event, 0, len(reply.Events))
	for _, ev := range reply.Events {
		if _, err := time.Parse(time.DateOnly, ev.Date); err != nil {
			continue
		}
		out = append(out, entity.Event{
			SourceID:    sourceID,
			Description: strings.TrimSpace(ev.Description),
			Date:        ev.Date,
			Excerpt:     strings.TrimSpace(ev.Excerpt),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
