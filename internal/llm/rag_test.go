package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLLMClient 测试用大模型客户端
type mockLLMClient struct {
	lastPrompt string
	answer     string
}

func (m *mockLLMClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	m.lastPrompt = prompt
	return &Response{
		Text:       m.answer,
		ModelName:  "mock",
		FinishTime: time.Now(),
	}, nil
}

func (m *mockLLMClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	return &Response{Text: m.answer, ModelName: "mock"}, nil
}

func (m *mockLLMClient) Name() string {
	return "mock"
}

func TestRAGService(t *testing.T) {
	t.Run("AnswerBuildsPromptWithContext", func(t *testing.T) {
		client := &mockLLMClient{answer: "the capital is Paris"}
		rag := NewRAG(client)

		contexts := []string{"France is a country.", "The capital of France is Paris."}
		resp, err := rag.Answer(context.Background(), "What is the capital of France?", contexts)
		require.NoError(t, err)
		assert.Equal(t, "the capital is Paris", resp.Answer)

		// 上下文以分隔线连接后注入模板
		assert.Contains(t, client.lastPrompt, "France is a country.\n\n---\n\nThe capital of France is Paris.")
		assert.Contains(t, client.lastPrompt, "What is the capital of France?")
		assert.NotContains(t, client.lastPrompt, "{{.Context}}")
		assert.NotContains(t, client.lastPrompt, "{{.Question}}")
	})

	t.Run("EmptyQuestionRejected", func(t *testing.T) {
		rag := NewRAG(&mockLLMClient{})
		_, err := rag.Answer(context.Background(), "", nil)
		require.Error(t, err)

		llmErr, ok := err.(LLMError)
		require.True(t, ok)
		assert.Equal(t, ErrCodeEmptyPrompt, llmErr.Code)
	})

	t.Run("SourcesIncluded", func(t *testing.T) {
		rag := NewRAG(&mockLLMClient{answer: "ok"})
		resp, err := rag.Answer(context.Background(), "q", []string{"ctx1", "ctx2"})
		require.NoError(t, err)
		require.Len(t, resp.Sources, 2)
		assert.Equal(t, "ctx1", resp.Sources[0].Content)
	})

	t.Run("SourcesDisabled", func(t *testing.T) {
		rag := NewRAG(&mockLLMClient{answer: "ok"}, WithSources(false))
		resp, err := rag.Answer(context.Background(), "q", []string{"ctx1"})
		require.NoError(t, err)
		assert.Empty(t, resp.Sources)
	})

	t.Run("CustomTemplate", func(t *testing.T) {
		client := &mockLLMClient{answer: "ok"}
		rag := NewRAG(client, WithTemplate("Q: {{.Question}} C: {{.Context}}"))

		_, err := rag.Answer(context.Background(), "why", []string{"because"})
		require.NoError(t, err)
		assert.Equal(t, "Q: why C: because", client.lastPrompt)
	})
}

func TestFormatContext(t *testing.T) {
	assert.Equal(t, "", formatContext(nil))
	assert.Equal(t, "a", formatContext([]string{"a"}))

	joined := formatContext([]string{"a", "b", "c"})
	assert.Equal(t, 2, strings.Count(joined, "\n\n---\n\n"))
}

func TestDeepSeekClientConfig(t *testing.T) {
	t.Run("RequiresAPIKey", func(t *testing.T) {
		_, err := NewDeepSeekClient()
		require.Error(t, err)

		llmErr, ok := err.(LLMError)
		require.True(t, ok)
		assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)
	})

	t.Run("DefaultModel", func(t *testing.T) {
		client, err := NewDeepSeekClient(WithAPIKey("sk-test"))
		require.NoError(t, err)
		assert.Equal(t, ModelDeepSeekChat, client.Name())
	})

	t.Run("FactoryRegistered", func(t *testing.T) {
		client, err := NewClient("deepseek", WithAPIKey("sk-test"), WithModel(ModelDeepSeekReasoner))
		require.NoError(t, err)
		assert.Equal(t, ModelDeepSeekReasoner, client.Name())
	})
}
