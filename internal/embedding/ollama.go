package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ollamaEmbedRequest Ollama嵌入API请求结构
type ollamaEmbedRequest struct {
	Model string   `json:"model"` // 模型名称
	Input []string `json:"input"` // 需要嵌入的文本列表
}

// ollamaEmbedResponse Ollama嵌入API响应结构
type ollamaEmbedResponse struct {
	Model      string      `json:"model"`      // 模型名称
	Embeddings [][]float32 `json:"embeddings"` // 嵌入向量列表
	Error      string      `json:"error,omitempty"`
}

// OllamaClient 基于本地Ollama服务的嵌入客户端
type OllamaClient struct {
	config     *Config
	httpClient *http.Client
}

// NewOllamaClient 创建Ollama嵌入客户端
func NewOllamaClient(opts ...Option) (Client, error) {
	config := NewConfig(opts...)

	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Model == "" {
		config.Model = "embeddinggemma"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &OllamaClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Name 返回模型名称
func (c *OllamaClient) Name() string {
	return c.config.Model
}

// Embed 生成单条文本的向量表示
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
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
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避策略
			waitTime := time.Duration(1<<attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, WrapEmbeddingError(ErrCodeTimeout, "embedding cancelled during backoff", ctx.Err())
			case <-time.After(waitTime):
			}
		}

		vectors, err := c.doEmbed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		var embErr EmbeddingError
		if errors.As(err, &embErr) && !embErr.Retryable() {
			return nil, err
		}
	}

	return nil, lastErr
}

// doEmbed 执行一次嵌入请求
func (c *OllamaClient) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := ollamaEmbedRequest{
		Model: c.config.Model,
		Input: texts,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, WrapEmbeddingError(ErrCodeInvalidRequest, "failed to marshal request", err)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, WrapEmbeddingError(ErrCodeInvalidRequest, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, WrapEmbeddingError(ErrCodeUnreachable, "embedding service unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapEmbeddingError(ErrCodeUnreachable, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, NewEmbeddingError(ErrCodeRateLimited, "too many requests")
		}
		return nil, NewEmbeddingError(ErrCodeUpstream,
			fmt.Sprintf("embedding API returned status %d: %s", resp.StatusCode, string(body)))
	}

	var embedResp ollamaEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, WrapEmbeddingError(ErrCodeUpstream, "failed to unmarshal response", err)
	}
	if embedResp.Error != "" {
		return nil, NewEmbeddingError(ErrCodeUpstream, embedResp.Error)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeUpstream,
			fmt.Sprintf("embedding count mismatch: expected %d, got %d", len(texts), len(embedResp.Embeddings)))
	}

	return embedResp.Embeddings, nil
}

// 在包初始化时注册Ollama客户端
func init() {
	RegisterClient("ollama", NewOllamaClient)
}
