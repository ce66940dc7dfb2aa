package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/contracts-analyzer/internal/llm"
)

type fakeModels struct {
	genModel   string
	genConfig  *genai.GenerateContentConfig
	genContent []*genai.Content
	reply      string
	err        error

	embedConfig *genai.EmbedContentConfig
	embedCount  int
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.genModel, f.genContent, f.genConfig = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(f.reply, genai.RoleModel),
		}},
	}, nil
}

func (f *fakeModels) EmbedContent(_ context.Context, _ string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.embedConfig = config
	f.embedCount = len(contents)
	res := &genai.EmbedContentResponse{}
	for i := range contents {
		res.Embeddings = append(res.Embeddings, &genai.ContentEmbedding{Values: []float32{float32(i), 1}})
	}
	return res, nil
}

func TestClient_GenerateStructured(t *testing.T) {
	fm := &fakeModels{reply: ` {"fields":[]} `}
	c := newClient(Config{Model: "gemini-test"}, fm, nil)

	schema := map[string]any{"type": "object"}
	out, err := c.Generate(context.Background(), llm.Prompt{System: "sys", User: "sample", Schema: schema})
	require.NoError(t, err)
	assert.Equal(t, `{"fields":[]}`, out)
	assert.Equal(t, "gemini-test", fm.genModel)
	assert.Equal(t, "application/json", fm.genConfig.ResponseMIMEType)
	assert.Equal(t, schema, fm.genConfig.ResponseJsonSchema)
	require.NotNil(t, fm.genConfig.SystemInstruction)
}

func TestClient_DescribeUsesVisionModel(t *testing.T) {
	fm := &fakeModels{reply: "page text"}
	c := newClient(Config{Model: "text", VisionModel: "vision"}, fm, nil)

	out, err := c.Describe(context.Background(), "ocr", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "page text", out)
	assert.Equal(t, "vision", fm.genModel)
	require.Len(t, fm.genContent, 1)
	assert.Len(t, fm.genContent[0].Parts, 2)
}

func TestClient_EmbedTaskTypes(t *testing.T) {
	fm := &fakeModels{}
	c := newClient(Config{EmbeddingDimensions: 256}, fm, nil)

	vecs, err := c.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	assert.Equal(t, "RETRIEVAL_DOCUMENT", fm.embedConfig.TaskType)
	require.NotNil(t, fm.embedConfig.OutputDimensionality)
	assert.EqualValues(t, 256, *fm.embedConfig.OutputDimensionality)

	q, err := c.EmbedQuery(context.Background(), "annual fee")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, q)
	assert.Equal(t, "RETRIEVAL_QUERY", fm.embedConfig.TaskType)
}

func TestClient_RateLimitedError(t *testing.T) {
	fm := &fakeModels{err: genai.APIError{Code: 429, Message: "quota"}}
	c := newClient(Config{}, fm, nil)

	_, err := c.Generate(context.Background(), llm.Prompt{User: "x"})
	assert.ErrorIs(t, err, llm.ErrRateLimited)
}
