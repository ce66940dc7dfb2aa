package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/anomaly"
	"github.com/joseph-ayodele/contracts-analyzer/internal/chunker"
	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/extraction"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
	"github.com/joseph-ayodele/contracts-analyzer/internal/vectorindex"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeText serves page text per document name; names starting with "broken" are unprocessable.
type fakeText struct {
	pages map[string]string
	calls atomic.Int32
}

func (f *fakeText) Extract(_ context.Context, doc entity.SourceDocument) (entity.DocumentResult, bool) {
	f.calls.Add(1)
	text, ok := f.pages[doc.ID]
	if !ok {
		return entity.DocumentResult{
			SourceID: doc.ID,
			Status:   constants.DocumentStatusUnprocessable,
			Err:      "all 3 tiers failed",
		}, false
	}
	return entity.DocumentResult{
		SourceID:  doc.ID,
		Status:    constants.DocumentStatusProcessed,
		Method:    constants.MethodNative,
		Pages:     1,
		Fragments: []entity.TextFragment{{SourceID: doc.ID, Text: text, Method: constants.MethodNative}},
	}, true
}

// letterEmbedder embeds text as letter counts plus a bias so no vector is zero.
func letterEmbedder() llm.Embedder {
	return llm.EmbedderFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, t := range texts {
			v := make([]float32, 27)
			v[26] = 1
			for _, r := range strings.ToLower(t) {
				if r >= 'a' && r <= 'z' {
					v[r-'a']++
				}
			}
			out[i] = v
		}
		return out, nil
	})
}

var rePrincipal = regexp.MustCompile(`Principal: (\d+)`)

// principalModel answers with the principal found in the retrieved passage.
type principalModel struct{ calls atomic.Int32 }

func (m *principalModel) Generate(_ context.Context, p llm.Prompt) (string, error) {
	m.calls.Add(1)
	if mm := rePrincipal.FindStringSubmatch(p.User); mm != nil {
		return mm[1], nil
	}
	return "not found", nil
}

type fakeDiscoverer struct {
	specs []entity.FieldSpec
	err   error
	calls int
}

func (d *fakeDiscoverer) Discover(context.Context, []entity.DocumentResult) ([]entity.FieldSpec, error) {
	d.calls++
	return d.specs, d.err
}

type fakeEvents struct{}

func (fakeEvents) Extract(_ context.Context, doc entity.DocumentResult) ([]entity.Event, error) {
	if doc.SourceID == "doc-03.pdf" {
		return nil, errors.New("model unavailable")
	}
	return []entity.Event{{SourceID: doc.SourceID, Date: "2026-01-01", Description: "renewal"}}, nil
}

var principalSpec = []entity.FieldSpec{
	{Key: "principal", Question: "What is the principal amount?", Type: constants.FieldNumber},
}

type fixture struct {
	text  *fakeText
	model *principalModel
	disc  *fakeDiscoverer
	docs  []entity.SourceDocument
}

func newFixture() *fixture {
	amounts := []int{100, 102, 98, 101, 99, 100, 103, 97, 100, 100, 5000}
	f := &fixture{
		text:  &fakeText{pages: map[string]string{}},
		model: &principalModel{},
		disc:  &fakeDiscoverer{specs: principalSpec},
	}
	for i, a := range amounts {
		name := fmt.Sprintf("doc-%02d.pdf", i)
		f.text.pages[name] = fmt.Sprintf("Loan agreement. Principal: %d reais.", a)
		f.docs = append(f.docs, entity.NewSourceDocument(name, []byte("%PDF-"+name)))
	}
	f.docs = append(f.docs, entity.NewSourceDocument("broken.pdf", []byte("garbage")))
	return f
}

func (f *fixture) processor(opts ...Option) *Processor {
	idx := vectorindex.NewMemoryIndex(letterEmbedder(), vectorindex.Config{}, nil)
	return NewProcessor(nil,
		f.text,
		chunker.New(),
		idx,
		f.disc,
		extraction.New(idx, f.model, nil, extraction.Config{}, nil),
		anomaly.New(anomaly.Config{}, nil),
		opts...,
	)
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture()
	pc, err := f.processor().Run(context.Background(), f.docs)
	require.NoError(t, err)

	assert.NotEmpty(t, pc.BatchID)
	require.Len(t, pc.Results, 12)
	assert.Len(t, pc.Processed(), 11)
	assert.Len(t, pc.Chunks, 11)
	for _, d := range pc.Documents {
		assert.Nil(t, d.Data, d.ID)
	}
	assert.NotNil(t, f.docs[0].Data)

	require.Len(t, pc.Records, 12)
	for i, d := range f.docs {
		assert.Equal(t, d.ID, pc.Records[i].SourceID)
	}
	assert.Equal(t, entity.Number(100), pc.Records[0].Values["principal"])
	assert.Equal(t, entity.Number(5000), pc.Records[10].Values["principal"])
	assert.Equal(t, entity.ContextNotFound(), pc.Records[11].Values["principal"])

	var flagged []string
	for _, fnd := range pc.Findings {
		if fnd.Severity == entity.SeverityAnomaly {
			flagged = append(flagged, fnd.SourceID)
		}
	}
	assert.Equal(t, []string{"doc-10.pdf"}, flagged)

	require.Len(t, pc.Warnings, 1)
	assert.Contains(t, pc.Warnings[0], "broken.pdf: unprocessable")
	assert.Empty(t, pc.Events)
	assert.Equal(t, int32(11), f.model.calls.Load())
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture()
	p := f.processor()
	first, err := p.Run(context.Background(), f.docs)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), f.docs)
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Findings, second.Findings)
	assert.NotEqual(t, first.BatchID, second.BatchID)
}

func TestRun_DiscoveryFailureFallsBack(t *testing.T) {
	f := newFixture()
	f.disc.err = errors.New("schema mismatch")
	pc, err := f.processor(WithFallbackFields(principalSpec)).Run(context.Background(), f.docs)
	require.NoError(t, err)

	assert.Equal(t, principalSpec, pc.Specs)
	assert.Equal(t, entity.Number(5000), pc.Records[10].Values["principal"])
	found := false
	for _, w := range pc.Warnings {
		if strings.Contains(w, "field discovery failed") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRun_DefaultFallbackFields(t *testing.T) {
	f := newFixture()
	f.disc.err = errors.New("quota")
	pc, err := f.processor().Run(context.Background(), f.docs)
	require.NoError(t, err)
	assert.NotEmpty(t, pc.Specs)
	for _, r := range pc.Records {
		assert.Len(t, r.Values, len(pc.Specs))
	}
}

func TestRun_FixedFieldsSkipDiscovery(t *testing.T) {
	f := newFixture()
	pc, err := f.processor(WithFieldSpecs(principalSpec)).Run(context.Background(), f.docs)
	require.NoError(t, err)
	assert.Zero(t, f.disc.calls)
	assert.Equal(t, principalSpec, pc.Specs)
}

func TestRun_NoTextIsFatal(t *testing.T) {
	f := newFixture()
	docs := []entity.SourceDocument{entity.NewSourceDocument("broken.pdf", nil)}
	pc, err := f.processor().Run(context.Background(), docs)
	assert.ErrorIs(t, err, ErrNoText)
	assert.ErrorIs(t, err, common.ErrUnprocessable)
	assert.Len(t, pc.Results, 1)
	assert.Empty(t, pc.Records)
}

func TestRun_IndexFailureIsFatal(t *testing.T) {
	f := newFixture()
	failing := llm.EmbedderFunc(func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	})
	idx := vectorindex.NewMemoryIndex(failing, vectorindex.Config{}, nil)
	p := NewProcessor(nil, f.text, chunker.New(), idx, f.disc,
		extraction.New(idx, f.model, nil, extraction.Config{}, nil), anomaly.New(anomaly.Config{}, nil))

	_, err := p.Run(context.Background(), f.docs)
	assert.ErrorIs(t, err, vectorindex.ErrEmbedding)
	assert.Zero(t, f.disc.calls)
	assert.Zero(t, f.model.calls.Load())
}

func TestRun_EventsFailuresAreWarnings(t *testing.T) {
	f := newFixture()
	pc, err := f.processor(WithEvents(fakeEvents{})).Run(context.Background(), f.docs)
	require.NoError(t, err)

	assert.Len(t, pc.Events, 10)
	found := false
	for _, w := range pc.Warnings {
		if strings.HasPrefix(w, "doc-03.pdf: events:") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.processor().Run(ctx, f.docs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.text.calls.Load())
}

func TestRun_DiscoveryTimeoutFallsBack(t *testing.T) {
	f := newFixture()
	f.disc.err = fmt.Errorf("discovery: %w", context.DeadlineExceeded)
	pc, err := f.processor(WithFallbackFields(principalSpec)).Run(context.Background(), f.docs)
	require.NoError(t, err)
	assert.Equal(t, principalSpec, pc.Specs)
}
