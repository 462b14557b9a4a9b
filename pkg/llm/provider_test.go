package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name       string
	embedCalls int
}

var _ Provider = (*mockProvider)(nil)

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.embedCalls++
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = []float32{float32(len(text)), 0.2, 0.3}
	}
	return result, nil
}

func (m *mockProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockProvider) Chat(_ context.Context, _ []Message, _ ...ChatOption) (string, error) {
	return "mock response", nil
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ string) (string, error) {
	return "mock generated text", nil
}

func (m *mockProvider) ChatStream(_ context.Context, _ []Message, _ ...ChatOption) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Content: "mock"}
	close(ch)
	return ch, nil
}

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("test-provider", func(config map[string]any) (Provider, error) {
		name := "test-provider"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockProvider{name: name}, nil
	})

	provider, err := NewProvider("test-provider", map[string]any{"name": "custom-name"})
	require.NoError(t, err)
	assert.Equal(t, "custom-name", provider.Name())

	embedder, err := NewEmbeddingProvider("test-provider", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-provider", embedder.Name())

	chat, err := NewChatProvider("test-provider", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-provider", chat.Name())

	assert.Contains(t, ListProviders(), "test-provider")
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("unknown-provider", nil)
	require.Error(t, err)

	_, err = NewChatProvider("unknown-provider", nil)
	assert.ErrorContains(t, err, "chat provider")
}

func TestApplyChatOptions(t *testing.T) {
	o := ApplyChatOptions()
	assert.Nil(t, o.Temperature)

	o = ApplyChatOptions(WithTemperature(0.2), WithMaxTokens(512))
	require.NotNil(t, o.Temperature)
	assert.InDelta(t, 0.2, *o.Temperature, 1e-9)
	assert.Equal(t, 512, o.MaxTokens)
}
