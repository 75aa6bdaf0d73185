package llm

import "fmt"

// ErrCode 大模型调用的失败类别
type ErrCode string

// 问答链路里大模型调用的失败类别
// 上下文过长值得单独区分：检索分块拼进提示词后可能超出模型窗口，
// 调用方据此决定缩小k而不是盲目重试
const (
	ErrCodeEmptyPrompt    ErrCode = "empty_prompt"     // 提示词或消息列表为空
	ErrCodeInvalidRequest ErrCode = "invalid_request"  // 请求非法或客户端类型未注册
	ErrCodeInvalidAPIKey  ErrCode = "invalid_api_key"  // API密钥缺失或无效
	ErrCodeRateLimited    ErrCode = "rate_limited"     // 请求频率超限
	ErrCodeModelOverload  ErrCode = "model_overloaded" // 模型服务过载
	ErrCodeContextTooLong ErrCode = "context_too_long" // 提示词超出模型上下文窗口
	ErrCodeTimeout        ErrCode = "timeout"          // 请求超时或被取消
	ErrCodeUpstream       ErrCode = "upstream_error"   // 模型服务返回错误或异常响应
)

// LLMError 大模型调用错误
// 携带失败类别和底层原因，errors.Is/As可以穿透到原始错误
type LLMError struct {
	Code    ErrCode // 失败类别
	Message string  // 错误描述
	Err     error   // 底层原因，可为nil
}

// Error 实现error接口
func (e LLMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("llm %s: %s", e.Code, e.Message)
}

// Unwrap 返回底层原因
func (e LLMError) Unwrap() error {
	return e.Err
}

// Retryable 判断该类失败是否值得退避后重试
// 限流和过载是瞬态的；密钥无效、上下文过长重试不会有任何改变
func (e LLMError) Retryable() bool {
	switch e.Code {
	case ErrCodeRateLimited, ErrCodeModelOverload:
		return true
	}
	return false
}

// NewLLMError 创建新的大模型错误
func NewLLMError(code ErrCode, message string) LLMError {
	return LLMError{Code: code, Message: message}
}

// WrapLLMError 包装底层错误并标注失败类别
func WrapLLMError(code ErrCode, message string, err error) LLMError {
	return LLMError{Code: code, Message: message, Err: err}
}
