package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

type FileResult struct {
	Path    string
	ID      string
	HashHex string
	Err     string
}

type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// ScanDirectory walks root, filters by includeExts (or defaults), skips hidden entries if requested,
// and loads each matching file. Documents come back sorted by path so runs are reproducible.
// Document ids are paths relative to root, which keeps same-named files in different folders apart.
func ScanDirectory(ctx context.Context, root string, includeExts []string, skipHidden bool, logger *slog.Logger) ([]entity.SourceDocument, []FileResult, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, common.NewAppError("INVALID_INPUT", "root path is required", common.ErrInvalidInput)
	}

	exts := newExtFilter(includeExts)

	var paths []string
	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !exts.Match(path) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, results, stats, err
		}
		return nil, results, stats, fmt.Errorf("%w: walk: %w", common.ErrInvalidInput, err)
	}

	sort.Strings(paths)
	docs := make([]entity.SourceDocument, 0, len(paths))
	for _, path := range paths {
		doc, err := entity.LoadSourceDocument(path)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			logger.Warn("ingest.file.failed", "path", path, "error", err)
			continue
		}
		if rel, err := filepath.Rel(root, path); err == nil {
			doc.ID = filepath.ToSlash(rel)
		}
		docs = append(docs, doc)
		results = append(results, FileResult{Path: path, ID: doc.ID, HashHex: doc.ContentHash})
		stats.Succeeded++
	}

	logger.Info("ingest.scan.ok", "root", root,
		"scanned", stats.Scanned, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "failed", stats.Failed)
	return docs, results, stats, nil
}
