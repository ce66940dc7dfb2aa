package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.pdf"), "%PDF-b")
	writeFile(t, filepath.Join(root, "a.PDF"), "%PDF-a")
	writeFile(t, filepath.Join(root, "sub", "b.pdf"), "%PDF-sub")
	writeFile(t, filepath.Join(root, "terms.docx"), "docx")
	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, ".hidden", "c.pdf"), "%PDF-c")
	writeFile(t, filepath.Join(root, ".d.pdf"), "%PDF-d")

	docs, results, stats, err := ScanDirectory(context.Background(), root, nil, true, nil)
	require.NoError(t, err)

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"a.PDF", "b.pdf", "sub/b.pdf", "terms.docx"}, ids)
	assert.Equal(t, "pdf", docs[0].Ext)
	assert.Equal(t, []byte("%PDF-sub"), docs[2].Data)
	assert.Len(t, results, 4)
	assert.Equal(t, uint32(4), stats.Matched)
	assert.Equal(t, uint32(4), stats.Succeeded)
	assert.Zero(t, stats.Failed)
}

func TestScanDirectory_IncludeHiddenAndExts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "a")
	writeFile(t, filepath.Join(root, "terms.docx"), "docx")
	writeFile(t, filepath.Join(root, ".d.pdf"), "d")

	docs, _, _, err := ScanDirectory(context.Background(), root, []string{".PDF"}, false, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, ".d.pdf", docs[0].ID)
	assert.Equal(t, "a.pdf", docs[1].ID)
}

func TestScanDirectory_Errors(t *testing.T) {
	_, _, _, err := ScanDirectory(context.Background(), " ", nil, true, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, _, _, err = ScanDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), nil, true, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/x/.git"))
	assert.False(t, IsHidden("/x/contract.pdf"))
	assert.False(t, IsHidden("."))
	assert.False(t, IsHidden(".."))
}

func TestExtFilter(t *testing.T) {
	defaults := newExtFilter(nil)
	assert.True(t, defaults.Match("/x/loan.PDF"))
	assert.True(t, defaults.Match("card.docx"))
	assert.False(t, defaults.Match("scan.png"))

	only := newExtFilter([]string{".PDF", ""})
	assert.True(t, only.Match("loan.pdf"))
	assert.False(t, only.Match("card.docx"))
}
