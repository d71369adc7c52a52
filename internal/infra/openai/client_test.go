package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/docchat/internal/core/llm"
)

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	embedder := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)

	assert.Equal(t, "custom-model", embedder.ModelName())
	assert.Equal(t, 42, embedder.Dimension())
	assert.Equal(t, 100, embedder.MaxBatchSize())
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClientWithAPIKey("", "")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestEmbedder_BatchEmbedKeepsInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		w.Header().Set("Content-Type", "application/json")
		// index の逆順で返す
		io.WriteString(w, `{"object":"list","model":"m","usage":{"prompt_tokens":2,"total_tokens":2},"data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		]}`)
	}))
	defer server.Close()

	embedder := NewEmbedder("dummy-key", WithRequestOptions(option.WithBaseURL(server.URL+"/v1/")))

	vectors, err := embedder.BatchEmbed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{0, 1}, vectors[1])
}

func TestEmbedder_RejectsOversizedBatch(t *testing.T) {
	embedder := NewEmbedder("dummy-key")

	_, err := embedder.BatchEmbed(context.Background(), make([]string, MaxBatchSize+1))
	assert.Error(t, err)

	_, err = embedder.BatchEmbed(context.Background(), nil)
	assert.Error(t, err)
}

func TestClient_GenerateRequestsJSONMode(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"intent\": \"question\"}"}}],
			"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`)
	}))
	defer server.Close()

	client, err := NewClientWithAPIKey("dummy-key", "", option.WithBaseURL(server.URL+"/v1/"))
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), llm.Request{
		Prompt:         "classify",
		Temperature:    0,
		ResponseFormat: llm.FormatJSON,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"intent": "question"}`, resp.Content)
	assert.Equal(t, 7, resp.TokensUsed)
	assert.Equal(t, DefaultModel, body["model"])
	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestClient_GenerateDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
	}))
	defer server.Close()

	client, err := NewClientWithAPIKey("dummy-key", "gpt-4o-mini", option.WithBaseURL(server.URL+"/v1/"))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), llm.Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
