package llm

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DeepSeekClient DeepSeek对话模型客户端
// DeepSeek提供OpenAI兼容的聊天接口
type DeepSeekClient struct {
	client *openai.Client
	config *Config
}

// NewDeepSeekClient 创建DeepSeek客户端
func NewDeepSeekClient(opts ...Option) (Client, error) {
	config := NewConfig(opts...)

	if config.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, "API key is required")
	}
	if config.Model == "" {
		config.Model = ModelDeepSeekChat
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.deepseek.com"
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.BaseURL

	return &DeepSeekClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name 返回模型名称
func (c *DeepSeekClient) Name() string {
	return c.config.Model
}

// Generate 根据提示词生成回答
func (c *DeepSeekClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "prompt cannot be empty")
	}

	genOpts := &GenerateOptions{}
	for _, opt := range options {
		opt(genOpts)
	}

	messages := []Message{{Role: RoleUser, Content: prompt}}
	return c.complete(ctx, messages, genOpts.MaxTokens, genOpts.Temperature, genOpts.TopP)
}

// Chat 进行多轮对话
func (c *DeepSeekClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "messages cannot be empty")
	}

	chatOpts := &ChatOptions{}
	for _, opt := range options {
		opt(chatOpts)
	}

	return c.complete(ctx, messages, chatOpts.MaxTokens, chatOpts.Temperature, chatOpts.TopP)
}

// complete 执行一次聊天补全请求，带重试
func (c *DeepSeekClient) complete(ctx context.Context, messages []Message, maxTokens *int, temperature, topP *float32) (*Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
			Name:    msg.Name,
		}
	}

	if maxTokens != nil {
		req.MaxTokens = *maxTokens
	} else if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}
	if temperature != nil {
		req.Temperature = *temperature
	} else {
		req.Temperature = c.config.Temperature
	}
	if topP != nil {
		req.TopP = *topP
	} else {
		req.TopP = c.config.TopP
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
				return nil, WrapLLMError(ErrCodeTimeout, "completion cancelled during backoff", ctx.Err())
			case <-time.After(waitTime):
			}
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		resp, err := c.client.CreateChatCompletion(timeoutCtx, req)
		cancel()

		if err == nil {
			if len(resp.Choices) == 0 {
				return nil, NewLLMError(ErrCodeUpstream, "empty completion response")
			}
			choice := resp.Choices[0]
			return &Response{
				Text: choice.Message.Content,
				Messages: append(messages, Message{
					Role:    RoleAssistant,
					Content: choice.Message.Content,
				}),
				TokenCount: resp.Usage.TotalTokens,
				ModelName:  resp.Model,
				FinishTime: time.Now(),
			}, nil
		}

		llmErr := classifyAPIError(err)
		lastErr = llmErr
		if !llmErr.Retryable() {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// classifyAPIError 将API错误映射为LLMError
func classifyAPIError(err error) LLMError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return WrapLLMError(ErrCodeRateLimited, "too many requests", err)
	case strings.Contains(msg, "overloaded") || strings.Contains(msg, "503"):
		return WrapLLMError(ErrCodeModelOverload, "model is currently overloaded", err)
	case strings.Contains(msg, "context length") || strings.Contains(msg, "maximum context"):
		return WrapLLMError(ErrCodeContextTooLong, "prompt exceeds model context window", err)
	case strings.Contains(msg, "invalid api key") || strings.Contains(msg, "401"):
		return WrapLLMError(ErrCodeInvalidAPIKey, "invalid API key", err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return WrapLLMError(ErrCodeTimeout, "request timed out", err)
	default:
		return WrapLLMError(ErrCodeUpstream, "llm API error", err)
	}
}

// 在包初始化时注册DeepSeek客户端
func init() {
	RegisterClient("deepseek", NewDeepSeekClient)
}
