package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient 基于HTTP的OCR服务客户端
// 对接tesseract-server风格的识别接口
type HTTPClient struct {
	endpoint   string
	language   string
	httpClient *http.Client
	maxRetries int
}

// NewHTTPClient 创建新的HTTP OCR客户端
func NewHTTPClient(opts ...Option) (*HTTPClient, error) {
	cfg := NewConfig(opts...)

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("ocr: endpoint cannot be empty")
	}

	return &HTTPClient{
		endpoint:   cfg.Endpoint,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Name 返回OCR引擎名称
func (c *HTTPClient) Name() string {
	return "tesseract"
}

// recognizeRequest OCR识别请求结构
type recognizeRequest struct {
	Image   string   `json:"image"`   // base64编码的图片数据
	Options language `json:"options"` // 识别选项
}

type language struct {
	Languages []string `json:"languages"`
}

// recognizeResponse OCR识别响应结构
type recognizeResponse struct {
	Data struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	} `json:"data"`
	Message string `json:"message"`
}

// Recognize 识别单张图片中的文本
// 失败时按固定间隔重试，重试耗尽后返回最后一次错误
func (c *HTTPClient) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}

	reqBody := recognizeRequest{
		Image:   "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
		Options: language{Languages: strings.Split(c.language, "+")},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ocr request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second * time.Duration(attempt)):
			}
		}

		text, err := c.doRequest(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("ocr request failed after %d retries: %w", c.maxRetries, lastErr)
}

// doRequest 发送一次识别请求
func (c *HTTPClient) doRequest(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ErrUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result recognizeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse ocr response: %w", err)
	}

	return strings.TrimSpace(result.Data.Stdout), nil
}
