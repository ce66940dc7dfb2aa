package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

var (
	_ llm.TextModel   = (*Client)(nil)
	_ llm.VisionModel = (*Client)(nil)
	_ llm.Embedder    = (*Client)(nil)
)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate implements llm.TextModel over chat/completions. Structured prompts use
// json_object mode with the schema carried in a system message; validation stays with the caller.
func (c *Client) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	start := time.Now()
	messages := make([]map[string]any, 0, 3)
	if p.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": p.System})
	}
	messages = append(messages, map[string]any{"role": "user", "content": p.User})

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
	}
	if p.Schema != nil {
		body["response_format"] = map[string]any{"type": "json_object"}
		messages = append(messages, map[string]any{"role": "system", "content": "JSON Schema:\n" + mustJSON(p.Schema)})
	}
	body["messages"] = messages

	content, err := c.chat(ctx, body)
	if err != nil {
		c.log.Error("llm.generate.error", "model", c.cfg.Model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	c.log.Debug("llm.generate.ok", "model", c.cfg.Model, "structured", p.Schema != nil,
		"reply_len", len(content), "elapsed_ms", time.Since(start).Milliseconds())
	return content, nil
}

// Describe implements llm.VisionModel with an inline data URL image part.
func (c *Client) Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if len(image) > llm.MaxVisionBytes {
		return "", fmt.Errorf("image too large for vision: %d bytes", len(image))
	}
	body := map[string]any{
		"model":       c.cfg.VisionModel,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]any{"url": llm.DataURL(image, mimeType), "detail": "high"}},
				},
			},
		},
	}
	return c.chat(ctx, body)
}

func (c *Client) chat(ctx context.Context, body map[string]any) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, c.headers(), c.log)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

// Embed implements llm.Embedder over /embeddings.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := map[string]any{
		"model": c.cfg.EmbeddingModel,
		"input": texts,
	}
	if c.cfg.EmbeddingDimensions > 0 {
		body["dimensions"] = c.cfg.EmbeddingDimensions
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	raw, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, c.headers(), c.log)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		v := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			v[j] = float32(f)
		}
		out[i] = v
	}
	return out, nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
