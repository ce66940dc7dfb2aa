package textextract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/cache"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

type fakeTier struct {
	method constants.ExtractionMethod
	pages  []string
	err    error
	calls  atomic.Int32
	seen   string
}

func (f *fakeTier) Method() constants.ExtractionMethod { return f.method }

func (f *fakeTier) Attempt(_ context.Context, in Input) ([]entity.TextFragment, error) {
	f.calls.Add(1)
	f.seen = in.Path
	if _, err := os.Stat(in.Path); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, failure(f.method, "fake", f.err)
	}
	var frags []entity.TextFragment
	for i, p := range f.pages {
		if fr, ok := pageFragment(in.Doc.ID, i, p, f.method); ok {
			frags = append(frags, fr)
		}
	}
	return frags, nil
}

// fakeRunner answers commands from a map keyed by binary name.
type fakeRunner struct {
	stdout map[string]string
	err    map[string]error
	onRun  func(name string, args []string)
	calls  []string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	if r.onRun != nil {
		r.onRun(name, args)
	}
	if err := r.err[name]; err != nil {
		return nil, []byte("boom"), err
	}
	return []byte(r.stdout[name]), nil, nil
}

func longText(word string) string {
	return strings.Repeat(word+" ", 40)
}

func pdfDoc(name string) entity.SourceDocument {
	return entity.NewSourceDocument(name, []byte("%PDF-1.4 fake "+name))
}

func TestExtract_StopsAtFirstSubstantialTier(t *testing.T) {
	native := &fakeTier{method: constants.MethodNative, pages: []string{longText("native")}}
	raster := &fakeTier{method: constants.MethodRaster, pages: []string{longText("raster")}}
	vision := &fakeTier{method: constants.MethodVision, pages: []string{"vision"}}

	e := NewExtractor(Config{TempDir: t.TempDir()}, []Tier{native, raster, vision}, nil)
	res, ok := e.Extract(context.Background(), pdfDoc("a.pdf"))

	require.True(t, ok)
	assert.Equal(t, constants.DocumentStatusProcessed, res.Status)
	assert.Equal(t, constants.MethodNative, res.Method)
	assert.EqualValues(t, 1, native.calls.Load())
	assert.EqualValues(t, 0, raster.calls.Load())
	assert.EqualValues(t, 0, vision.calls.Load())
}

func TestExtract_FallsBackWhenNativeUnderThreshold(t *testing.T) {
	native := &fakeTier{method: constants.MethodNative, pages: []string{"only a few characters"}}
	raster := &fakeTier{method: constants.MethodRaster, pages: []string{longText("raster"), "", longText("page three")}}
	vision := &fakeTier{method: constants.MethodVision}

	e := NewExtractor(Config{TempDir: t.TempDir()}, []Tier{native, raster, vision}, nil)
	res, ok := e.Extract(context.Background(), pdfDoc("b.pdf"))

	require.True(t, ok)
	assert.Equal(t, constants.MethodRaster, res.Method)
	require.Len(t, res.Fragments, 2)
	for _, f := range res.Fragments {
		assert.NotEqual(t, constants.MethodNative, f.Method)
		assert.Equal(t, "b.pdf", f.SourceID)
	}
	// blank page omitted, page order kept
	assert.Equal(t, 0, res.Fragments[0].PageIndex)
	assert.Equal(t, 2, res.Fragments[1].PageIndex)
	assert.Equal(t, 3, res.Pages)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "under threshold")
	assert.EqualValues(t, 0, vision.calls.Load())
}

func TestExtract_FinalTierNeedsOnlyOnePage(t *testing.T) {
	native := &fakeTier{method: constants.MethodNative, err: errors.New("no text layer")}
	raster := &fakeTier{method: constants.MethodRaster, pages: []string{"short"}}
	vision := &fakeTier{method: constants.MethodVision, pages: []string{"short page"}}

	e := NewExtractor(Config{TempDir: t.TempDir()}, []Tier{native, raster, vision}, nil)
	res, ok := e.Extract(context.Background(), pdfDoc("c.pdf"))

	require.True(t, ok)
	assert.Equal(t, constants.MethodVision, res.Method)
	assert.Len(t, res.Warnings, 2)
}

func TestExtract_AllTiersFailIsUnprocessable(t *testing.T) {
	dir := t.TempDir()
	tiers := []Tier{
		&fakeTier{method: constants.MethodNative, err: errors.New("corrupt")},
		&fakeTier{method: constants.MethodRaster, err: errors.New("corrupt")},
		&fakeTier{method: constants.MethodVision},
	}

	e := NewExtractor(Config{TempDir: dir}, tiers, nil)
	res, ok := e.Extract(context.Background(), pdfDoc("bad.pdf"))

	assert.False(t, ok)
	assert.Equal(t, constants.DocumentStatusUnprocessable, res.Status)
	assert.Empty(t, res.Fragments)
	assert.Len(t, res.Warnings, 3)
	assert.Contains(t, res.Err, "all 3 tiers failed")
}

func TestExtract_RemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	native := &fakeTier{method: constants.MethodNative, err: errors.New("corrupt")}
	raster := &fakeTier{method: constants.MethodRaster, pages: []string{longText("ok")}}

	e := NewExtractor(Config{TempDir: dir}, []Tier{native, raster}, nil)
	_, ok := e.Extract(context.Background(), pdfDoc("d.pdf"))
	require.True(t, ok)

	require.NotEmpty(t, raster.seen)
	assert.True(t, strings.HasPrefix(raster.seen, dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, ok = NewExtractor(Config{TempDir: dir}, []Tier{native}, nil).Extract(context.Background(), pdfDoc("e.pdf"))
	require.False(t, ok)
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtract_Idempotent(t *testing.T) {
	raster := &fakeTier{method: constants.MethodRaster, pages: []string{longText("same"), longText("again")}}
	e := NewExtractor(Config{TempDir: t.TempDir()}, []Tier{raster}, nil)

	first, ok := e.Extract(context.Background(), pdfDoc("f.pdf"))
	require.True(t, ok)
	second, ok := e.Extract(context.Background(), pdfDoc("f.pdf"))
	require.True(t, ok)
	assert.Equal(t, first.Fragments, second.Fragments)
}

func TestExtract_CacheSkipsTiers(t *testing.T) {
	store := cache.NewMemoryStore()
	raster := &fakeTier{method: constants.MethodRaster, pages: []string{longText("cached")}}
	e := NewExtractor(Config{TempDir: t.TempDir()}, []Tier{raster}, nil, WithCache(store))

	_, ok := e.Extract(context.Background(), pdfDoc("g.pdf"))
	require.True(t, ok)
	res, ok := e.Extract(context.Background(), pdfDoc("g.pdf"))
	require.True(t, ok)

	assert.EqualValues(t, 1, raster.calls.Load())
	assert.Equal(t, constants.MethodRaster, res.Method)
	assert.Equal(t, 1, store.Len())
}

func TestExtract_CacheHitKeepsDocumentIdentity(t *testing.T) {
	store := cache.NewMemoryStore()
	native := &fakeTier{method: constants.MethodNative, pages: []string{longText("shared"), longText("terms")}}
	e := NewExtractor(Config{TempDir: t.TempDir()}, []Tier{native}, nil, WithCache(store))
	data := []byte("%PDF-1.4 identical bytes")

	first, ok := e.Extract(context.Background(), entity.NewSourceDocument("a.pdf", data))
	require.True(t, ok)
	second, ok := e.Extract(context.Background(), entity.NewSourceDocument("renamed/b.pdf", data))
	require.True(t, ok)

	assert.EqualValues(t, 1, native.calls.Load())
	assert.Equal(t, "renamed/b.pdf", second.SourceID)
	require.Len(t, second.Fragments, 2)
	for _, f := range second.Fragments {
		assert.Equal(t, "renamed/b.pdf", f.SourceID)
	}
	for _, f := range first.Fragments {
		assert.Equal(t, "a.pdf", f.SourceID)
	}
}

type lockedStore struct{}

func (lockedStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (lockedStore) Put(context.Context, string, []byte) error {
	return errors.New("database is locked")
}

func TestExtract_CacheWriteFailureKeepsResult(t *testing.T) {
	native := &fakeTier{method: constants.MethodNative, pages: []string{longText("native")}}
	e := NewExtractor(Config{TempDir: t.TempDir()}, []Tier{native}, nil, WithCache(lockedStore{}))

	res, ok := e.Extract(context.Background(), pdfDoc("locked.pdf"))
	require.True(t, ok)
	assert.Equal(t, constants.DocumentStatusProcessed, res.Status)
	assert.Empty(t, res.Err)
}

func TestExtract_FailuresAreNotCached(t *testing.T) {
	store := cache.NewMemoryStore()
	native := &fakeTier{method: constants.MethodNative, err: errors.New("corrupt")}
	e := NewExtractor(Config{TempDir: t.TempDir()}, []Tier{native}, nil, WithCache(store))

	_, ok := e.Extract(context.Background(), pdfDoc("h.pdf"))
	require.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestExtract_WordDocument(t *testing.T) {
	native := &fakeTier{method: constants.MethodNative}
	var gotMime string
	conv := func(data []byte, mime string) (string, error) {
		gotMime = mime
		return "Loan agreement\r\n\r\n\r\nPrincipal:\t10.000,00", nil
	}
	e := NewExtractor(Config{TempDir: t.TempDir()}, []Tier{native}, nil, WithWordConverter(conv))

	res, ok := e.Extract(context.Background(), entity.NewSourceDocument("contract.docx", []byte("PK")))

	require.True(t, ok)
	assert.Equal(t, constants.MethodDocx, res.Method)
	assert.Equal(t, constants.MimeForExt("docx"), gotMime)
	require.Len(t, res.Fragments, 1)
	assert.Equal(t, "Loan agreement\n\nPrincipal: 10.000,00", res.Fragments[0].Text)
	assert.EqualValues(t, 0, native.calls.Load())
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	e := NewExtractor(Config{TempDir: t.TempDir()}, nil, nil)
	res, ok := e.Extract(context.Background(), entity.NewSourceDocument("notes.txt", []byte("hello")))
	assert.False(t, ok)
	assert.Contains(t, res.Err, "unsupported extension")
}

func TestNativeTier_CorruptPDF(t *testing.T) {
	tier := NewNativeTier(nil)
	_, err := tier.Attempt(context.Background(), Input{Doc: pdfDoc("x.pdf")})
	var tf *TierFailure
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, constants.MethodNative, tf.Tier)
}

func TestRasterTier_SplitsPagesOnFormFeed(t *testing.T) {
	runner := &fakeRunner{stdout: map[string]string{"pdftotext": "first  page\f\f third\tpage \f"}}
	tier := NewRasterTier("", runner, nil)

	frags, err := tier.Attempt(context.Background(), Input{Doc: pdfDoc("r.pdf"), Path: "/tmp/r.pdf"})
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "first page", frags[0].Text)
	assert.Equal(t, 0, frags[0].PageIndex)
	assert.Equal(t, "third page", frags[1].Text)
	assert.Equal(t, 2, frags[1].PageIndex)
	assert.Equal(t, []string{"pdftotext -layout -enc UTF-8 -eol unix /tmp/r.pdf -"}, runner.calls)
}

func TestRasterTier_CommandFailure(t *testing.T) {
	runner := &fakeRunner{err: map[string]error{"pdftotext": errors.New("exit status 1")}}
	_, err := NewRasterTier("", runner, nil).Attempt(context.Background(), Input{Doc: pdfDoc("r.pdf"), Path: "/tmp/r.pdf"})
	var tf *TierFailure
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, constants.MethodRaster, tf.Tier)
}

// writePNG emulates pdftoppm -singlefile by creating <prefix>.png.
func writePNG(name string, args []string) {
	if name != "pdftoppm" || len(args) == 0 {
		return
	}
	prefix := args[len(args)-1]
	_ = os.WriteFile(prefix+".png", []byte("png:"+filepath.Base(prefix)), 0o600)
}

func TestVisionTier_DescribesEveryPage(t *testing.T) {
	runner := &fakeRunner{onRun: writePNG}
	var calls atomic.Int32
	model := llm.VisionModelFunc(func(_ context.Context, prompt string, image []byte, mime string) (string, error) {
		calls.Add(1)
		assert.Equal(t, "image/png", mime)
		assert.Equal(t, llm.VisionOCRPrompt, prompt)
		if string(image) == "png:page-2" {
			return "   ", nil
		}
		return "text of " + string(image), nil
	})

	dir := t.TempDir()
	tier := NewVisionTier(VisionConfig{DPI: 150, TempDir: dir}, model, llm.NewRateLimiter(0), runner, nil)
	tier.pageCount = func(string) (int, error) { return 3, nil }

	frags, err := tier.Attempt(context.Background(), Input{Doc: pdfDoc("v.pdf"), Path: "/tmp/v.pdf"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	require.Len(t, frags, 2)
	assert.Equal(t, 0, frags[0].PageIndex)
	assert.Equal(t, 2, frags[1].PageIndex)
	assert.Equal(t, constants.MethodVision, frags[1].Method)
	// DPI clamps to the 200 minimum
	assert.Contains(t, runner.calls[0], "-r 200 -png -f 1 -l 1 -singlefile")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVisionTier_MaxPages(t *testing.T) {
	runner := &fakeRunner{onRun: writePNG}
	model := llm.VisionModelFunc(func(context.Context, string, []byte, string) (string, error) {
		return "page text", nil
	})
	tier := NewVisionTier(VisionConfig{MaxPages: 2, TempDir: t.TempDir()}, model, nil, runner, nil)
	tier.pageCount = func(string) (int, error) { return 10, nil }

	frags, err := tier.Attempt(context.Background(), Input{Doc: pdfDoc("v.pdf"), Path: "/tmp/v.pdf"})
	require.NoError(t, err)
	assert.Len(t, frags, 2)
	assert.Len(t, runner.calls, 2)
}

func TestVisionTier_ModelErrorsSkipPage(t *testing.T) {
	runner := &fakeRunner{onRun: writePNG}
	model := llm.VisionModelFunc(func(_ context.Context, _ string, image []byte, _ string) (string, error) {
		if string(image) == "png:page-1" {
			return "", errors.New("quota")
		}
		return "second page", nil
	})
	tier := NewVisionTier(VisionConfig{TempDir: t.TempDir()}, model, nil, runner, nil)
	tier.pageCount = func(string) (int, error) { return 2, nil }

	frags, err := tier.Attempt(context.Background(), Input{Doc: pdfDoc("v.pdf"), Path: "/tmp/v.pdf"})
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, 1, frags[0].PageIndex)
}

func TestVisionTier_NoModel(t *testing.T) {
	_, err := NewVisionTier(VisionConfig{}, nil, nil, &fakeRunner{}, nil).Attempt(context.Background(), Input{Doc: pdfDoc("v.pdf")})
	var tf *TierFailure
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, "no vision model configured", tf.Reason)
}

func TestPageNumber(t *testing.T) {
	assert.Equal(t, 3, pageNumber("/tmp/x/all-03.png"))
	assert.Equal(t, 12, pageNumber("all-12.png"))
	assert.Equal(t, 0, pageNumber("all.png"))
}

func TestNormalize(t *testing.T) {
	in := "Termination  fee:\t2%\r\n\r\n\r\n\r\nthe borrow-\ner shall pay   \n"
	assert.Equal(t, "Termination fee: 2%\n\nthe borrower shall pay", Normalize(in))
	assert.Equal(t, 5, nonSpaceLen(" a b\nc\td e "))
}
