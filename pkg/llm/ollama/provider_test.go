package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/tutor-x/pkg/llm"
)

func newTestProvider(url string) *Provider {
	return NewProviderWithConfig(&Config{
		BaseURL:    url,
		EmbedModel: "nomic-embed-text",
		ChatModel:  "qwen2.5:7b",
		Timeout:    5 * time.Second,
		MaxRetries: 0,
	})
}

func TestNewProvider_FromConfigMap(t *testing.T) {
	p, err := NewProvider(map[string]any{
		"base_url":   "http://ollama:11434",
		"chat_model": "llama3",
	})
	require.NoError(t, err)

	op := p.(*Provider)
	assert.Equal(t, "http://ollama:11434", op.config.BaseURL)
	assert.Equal(t, "llama3", op.config.ChatModel)
	assert.Equal(t, "nomic-embed-text", op.config.EmbedModel)
	assert.Equal(t, ProviderName, p.Name())
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := embedResponse{Model: req.Model}
		for range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{0.1, 0.2, 0.3})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	vecs, err := newTestProvider(srv.URL).Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Len(t, vecs[1], 3)
}

func TestEmbed_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestChat_SendsTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Options)
		require.NotNil(t, req.Options.Temperature)
		assert.InDelta(t, 0.2, *req.Options.Temperature, 1e-9)
		assert.False(t, req.Stream)
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "MR = MC"}, Done: true})
	}))
	defer srv.Close()

	out, err := newTestProvider(srv.URL).Chat(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "profit max?"}}, llm.WithTemperature(0.2))
	require.NoError(t, err)
	assert.Equal(t, "MR = MC", out)
}

func TestChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, tok := range []string{"The ", "answer ", "is $x$."} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", tok)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	ch, err := newTestProvider(srv.URL).ChatStream(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "q"}})
	require.NoError(t, err)

	var got string
	for c := range ch {
		require.NoError(t, c.Err)
		got += c.Content
	}
	assert.Equal(t, "The answer is $x$.", got)
}

func TestChatStream_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).ChatStream(context.Background(), nil)
	assert.ErrorContains(t, err, "404")
}
