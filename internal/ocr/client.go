package ocr

import (
	"context"
	"errors"
	"time"
)

// Client OCR客户端接口
// 负责从扫描页图片中识别文本，作为直接文本提取失败时的回退手段
type Client interface {
	// Recognize 识别单张图片中的文本
	Recognize(ctx context.Context, image []byte) (string, error)

	// Name 返回OCR引擎名称
	Name() string
}

// 常用错误定义
var (
	ErrEmptyImage  = errors.New("ocr: image data is empty")
	ErrUnavailable = errors.New("ocr: service unavailable")
)

// Config OCR客户端配置
type Config struct {
	Endpoint   string        // OCR服务端点
	Language   string        // 识别语言
	Timeout    time.Duration // 请求超时时间
	MaxRetries int           // 最大重试次数
}

// Option 客户端配置选项函数类型
type Option func(*Config)

// WithEndpoint 设置OCR服务端点
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithLanguage 设置识别语言
func WithLanguage(lang string) Option {
	return func(c *Config) {
		c.Language = lang
	}
}

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries 设置最大重试次数
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoint:   "http://localhost:8884/tesseract",
		Language:   "eng",
		Timeout:    60 * time.Second,
		MaxRetries: 2,
	}
}

// NewConfig 创建一个新的配置并应用选项
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
