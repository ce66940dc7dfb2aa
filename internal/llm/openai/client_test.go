package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

func newTestServer(t *testing.T, handler func(path string, body map[string]any) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		status, resp := handler(r.URL.Path, body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GenerateStructured(t *testing.T) {
	srv := newTestServer(t, func(path string, body map[string]any) (int, string) {
		assert.Equal(t, "/chat/completions", path)
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 3)
		return 200, `{"choices":[{"message":{"content":"  {\"ok\":true}  "}}]}`
	})
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)

	out, err := c.Generate(context.Background(), llm.Prompt{
		System: "sys", User: "user", Schema: map[string]any{"type": "object"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
}

func TestClient_DescribeSendsImage(t *testing.T) {
	srv := newTestServer(t, func(_ string, body map[string]any) (int, string) {
		msgs := body["messages"].([]any)
		content := msgs[0].(map[string]any)["content"].([]any)
		img := content[1].(map[string]any)["image_url"].(map[string]any)
		assert.Equal(t, "data:image/png;base64,iVBO", img["url"])
		return 200, `{"choices":[{"message":{"content":"CLÁUSULA 1"}}]}`
	})
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o"}, nil)

	out, err := c.Describe(context.Background(), llm.VisionOCRPrompt, []byte{0x89, 0x50, 0x4e}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "CLÁUSULA 1", out)
}

func TestClient_EmbedOrdersByIndex(t *testing.T) {
	srv := newTestServer(t, func(path string, body map[string]any) (int, string) {
		assert.Equal(t, "/embeddings", path)
		assert.Len(t, body["input"], 2)
		return 200, `{"data":[{"index":1,"embedding":[0.5,0.5]},{"index":0,"embedding":[1,0]}]}`
	})
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)

	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0.5, 0.5}}, vecs)
}

func TestClient_RateLimited(t *testing.T) {
	srv := newTestServer(t, func(string, map[string]any) (int, string) {
		return http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`
	})
	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)

	_, err := c.Generate(context.Background(), llm.Prompt{User: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrRateLimited)
	var httpErr *llm.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Status)
}
