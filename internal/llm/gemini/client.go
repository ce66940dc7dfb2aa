// Package gemini implements the llm model contracts on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

// Config for the Gemini client.
type Config struct {
	APIKey              string
	Model               string  // text and structured prompts
	VisionModel         string  // defaults to Model
	EmbeddingModel      string  // default "text-embedding-004"
	EmbeddingDimensions int32   // 0 = model default
	Temperature         float32 // 0..2
}

// models is the subset of *genai.Models the client uses.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Client struct {
	cfg    Config
	models models
	log    *slog.Logger
}

var (
	_ llm.TextModel     = (*Client)(nil)
	_ llm.VisionModel   = (*Client)(nil)
	_ llm.Embedder      = (*Client)(nil)
	_ llm.QueryEmbedder = (*Client)(nil)
)

// NewClient connects to the Gemini API backend.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newClient(cfg, gc.Models, logger), nil
}

func newClient(cfg Config, m models, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-004"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, models: m, log: logger}
}

// Generate implements llm.TextModel. Structured prompts request application/json with the schema attached.
func (c *Client) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	start := time.Now()
	gcfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if p.System != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.Schema != nil {
		gcfg.ResponseMIMEType = "application/json"
		gcfg.ResponseJsonSchema = p.Schema
	}

	resp, err := c.models.GenerateContent(ctx, c.cfg.Model,
		[]*genai.Content{genai.NewContentFromText(p.User, genai.RoleUser)}, gcfg)
	if err != nil {
		c.log.Error("llm.generate.error", "model", c.cfg.Model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", wrapErr("generate", err)
	}
	out := strings.TrimSpace(resp.Text())
	c.log.Debug("llm.generate.ok", "model", c.cfg.Model, "structured", p.Schema != nil,
		"reply_len", len(out), "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// Describe implements llm.VisionModel with the image sent as an inline part.
func (c *Client) Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if len(image) > llm.MaxVisionBytes {
		return "", fmt.Errorf("image too large for vision: %d bytes", len(image))
	}
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(image, mimeType),
	}
	resp, err := c.models.GenerateContent(ctx, c.cfg.VisionModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)})
	if err != nil {
		return "", wrapErr("describe", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Embed implements llm.Embedder with document-retrieval task type.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

// EmbedQuery embeds a search query with query-retrieval task type.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := c.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (c *Client) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	ecfg := &genai.EmbedContentConfig{TaskType: task}
	if c.cfg.EmbeddingDimensions > 0 {
		ecfg.OutputDimensionality = genai.Ptr(c.cfg.EmbeddingDimensions)
	}
	res, err := c.models.EmbedContent(ctx, c.cfg.EmbeddingModel, contents, ecfg)
	if err != nil {
		return nil, wrapErr("embed", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: got %d vectors for %d inputs", len(res.Embeddings), len(texts))
	}
	out := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func wrapErr(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("gemini %s: %w: %w", op, llm.ErrRateLimited, err)
	}
	return fmt.Errorf("gemini %s: %w", op, err)
}
