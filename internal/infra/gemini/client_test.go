package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)

	_, err = NewEmbedder(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(context.Background(), "dummy-key", "")
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, DefaultModel, client.ModelName())

	embedder, err := NewEmbedder(context.Background(), "dummy-key", "")
	require.NoError(t, err)
	defer embedder.Close()
	assert.Equal(t, DefaultEmbeddingModel, embedder.ModelName())
	assert.Equal(t, 100, embedder.MaxBatchSize())
}

func TestBatchEmbedRejectsInvalidBatches(t *testing.T) {
	embedder, err := NewEmbedder(context.Background(), "dummy-key", "")
	require.NoError(t, err)
	defer embedder.Close()

	_, err = embedder.BatchEmbed(context.Background(), nil)
	assert.Error(t, err)

	_, err = embedder.BatchEmbed(context.Background(), make([]string, MaxBatchSize+1))
	assert.Error(t, err)
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"intent": `), genai.Text(`"question"}`)}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
		},
	}
	assert.Equal(t, `{"intent": "question"}`, responseText(resp))

	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}))
}
