package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
)

// ErrSchemaMismatch is returned when a reply still violates its schema after the repair pass.
var ErrSchemaMismatch = errors.New("llm: output does not match schema")

// GenerateStructured asks model for JSON matching p.Schema and validates it locally.
// An invalid reply gets exactly one repair pass on repair (model when nil) before giving up.
func GenerateStructured(ctx context.Context, model, repair TextModel, p Prompt, logger *slog.Logger) ([]byte, error) {
	logger = common.LoggerWith(ctx, logger)
	if p.Schema == nil {
		return nil, common.NewAppError("LLM_ERROR", "structured prompt without schema", common.ErrInvalidInput)
	}
	rid := uuid.New().String()
	start := time.Now()

	logger.Info("llm.structured.start", "req_id", rid, "user_len", len(p.User))

	reply, err := model.Generate(ctx, p)
	if err != nil {
		logger.Error("llm.structured.call_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: %w", common.ErrModel, err)
	}

	doc := ExtractJSON(reply)
	verr := ValidateJSONAgainstSchema(p.Schema, doc)
	if verr == nil {
		logger.Info("llm.structured.ok", "req_id", rid, "repaired", false,
			"elapsed_ms", time.Since(start).Milliseconds())
		return doc, nil
	}

	logger.Warn("llm.structured.schema_validation_failed", "req_id", rid, "error", verr,
		"failing", FailingProperties(verr))

	if repair == nil {
		repair = model
	}
	fixed, err := repair.Generate(ctx, BuildRepairPrompt(p.Schema, reply, verr))
	if err != nil {
		logger.Error("llm.structured.repair_call_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: repair: %w", common.ErrModel, err)
	}

	doc = ExtractJSON(fixed)
	if verr := ValidateJSONAgainstSchema(p.Schema, doc); verr != nil {
		logger.Error("llm.structured.repair_failed", "req_id", rid, "error", verr,
			"content", truncate(string(doc), 2<<10),
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: %w", ErrSchemaMismatch, verr)
	}

	logger.Info("llm.structured.ok", "req_id", rid, "repaired", true,
		"elapsed_ms", time.Since(start).Milliseconds())
	return doc, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
