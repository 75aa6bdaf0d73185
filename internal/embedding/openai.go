package embedding

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient OpenAI兼容接口的嵌入客户端
type OpenAIClient struct {
	client *openai.Client
	config *Config
}

// NewOpenAIClient 创建OpenAI嵌入客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	config := NewConfig(opts...)

	if config.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, "API key is required")
	}
	if config.Model == "" || config.Model == DefaultConfig().Model {
		config.Model = "text-embedding-3-small"
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" && config.BaseURL != DefaultConfig().BaseURL {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.config.Model
}

// Embed 生成单条文本的向量表示
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, "input text cannot be empty")
	}

	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, NewEmbeddingError(ErrCodeUpstream, "empty embedding response")
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成多条文本的向量表示
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, text := range texts {
		if text == "" {
			return nil, NewEmbeddingError(ErrCodeEmptyInput, "input text cannot be empty")
		}
	}

	maxRetries := c.config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.config.Model),
	}
	if c.config.Dimensions > 0 {
		req.Dimensions = c.config.Dimensions
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		timeoutCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		resp, err := c.client.CreateEmbeddings(timeoutCtx, req)
		cancel()

		if err == nil {
			if len(resp.Data) != len(texts) {
				return nil, NewEmbeddingError(ErrCodeUpstream, "embedding count mismatch")
			}
			vectors := make([][]float32, len(resp.Data))
			for i, data := range resp.Data {
				vectors[i] = data.Embedding
			}
			return vectors, nil
		}

		// 速率限制错误退避后重试，其他错误直接返回
		if !isRateLimitError(err) {
			return nil, WrapEmbeddingError(ErrCodeUpstream, "embedding API error", err)
		}
		lastErr = WrapEmbeddingError(ErrCodeRateLimited, "too many requests", err)

		waitTime := time.Duration(1<<(attempt+1)) * time.Second
		select {
		case <-ctx.Done():
			return nil, WrapEmbeddingError(ErrCodeTimeout, "embedding cancelled during backoff", ctx.Err())
		case <-time.After(waitTime):
		}
	}

	return nil, lastErr
}

// isRateLimitError 检查是否为速率限制错误
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}

// 在包初始化时注册OpenAI客户端
func init() {
	RegisterClient("openai", NewOpenAIClient)
}
