package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
	"github.com/joseph-ayodele/contracts-analyzer/internal/textextract"
)

type extractOptions struct {
	json   bool
	native bool
}

// newExtractCmd runs text extraction on a single file, for checking how a contract reads.
func newExtractCmd(a *app) *cobra.Command {
	opts := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract the text of one contract and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			return a.runExtract(cmd.Context(), opts, args[0])
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&opts.native, "no-vision", false, "skip the vision tier (no model credentials needed)")
	return cmd
}

func (a *app) runExtract(ctx context.Context, opts *extractOptions, path string) error {
	doc, err := entity.LoadSourceDocument(path)
	if err != nil {
		return common.NewAppError("INVALID_INPUT", fmt.Sprintf("read %s", path), fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}

	var vision llm.VisionModel
	if !opts.native {
		m, err := a.models(ctx)
		if err != nil {
			return err
		}
		vision = m.vision
	}

	tiers := textextract.DefaultTiers(a.cfg.Extraction, vision, llm.NewRateLimiter(a.cfg.Extraction.VisionInterval), nil, a.logger)
	if opts.native {
		tiers = tiers[:2]
	}
	ex := textextract.NewExtractor(textextract.Config{MinChars: a.cfg.Extraction.MinChars, TempDir: a.cfg.Extraction.TempDir},
		tiers, a.logger)

	res, ok := ex.Extract(ctx, doc)
	if opts.json {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Fprintln(a.out, string(data))
	} else if ok {
		for _, f := range res.Fragments {
			fmt.Fprintf(a.out, "=== page %d (%s) ===\n%s\n\n", f.PageIndex+1, f.Method, f.Text)
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrUnprocessable, res.Err)
	}
	return nil
}
