package embedding

import "fmt"

// ErrCode 嵌入失败类别
type ErrCode string

// 嵌入调用的失败类别
// 空输入和非法请求是调用方错误，分块流水线不应该产生这类请求；
// 其余类别来自嵌入服务本身，摄取闸门靠它们区分可重试和不可重试的失败
const (
	ErrCodeEmptyInput     ErrCode = "empty_input"         // 待嵌入文本为空
	ErrCodeInvalidRequest ErrCode = "invalid_request"     // 请求构造失败或被服务端拒绝
	ErrCodeInvalidAPIKey  ErrCode = "invalid_api_key"     // API密钥缺失或无效
	ErrCodeUnreachable    ErrCode = "service_unreachable" // 嵌入服务连接失败
	ErrCodeRateLimited    ErrCode = "rate_limited"        // 请求频率超限
	ErrCodeUpstream       ErrCode = "upstream_error"      // 嵌入服务返回错误或异常响应
	ErrCodeTimeout        ErrCode = "timeout"             // 请求超时或被取消
)

// EmbeddingError 嵌入错误
// 携带失败类别和底层原因，errors.Is/As可以穿透到原始错误
type EmbeddingError struct {
	Code    ErrCode // 失败类别
	Message string  // 错误描述
	Err     error   // 底层原因，可为nil
}

// Error 实现error接口
func (e EmbeddingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("embedding %s: %s", e.Code, e.Message)
}

// Unwrap 返回底层原因
func (e EmbeddingError) Unwrap() error {
	return e.Err
}

// Retryable 判断该类失败是否值得重试
// 调用方错误重试也不会成功，服务端和网络类失败可以退避后再试
func (e EmbeddingError) Retryable() bool {
	switch e.Code {
	case ErrCodeUnreachable, ErrCodeRateLimited, ErrCodeUpstream, ErrCodeTimeout:
		return true
	}
	return false
}

// NewEmbeddingError 创建新的嵌入错误
func NewEmbeddingError(code ErrCode, message string) EmbeddingError {
	return EmbeddingError{Code: code, Message: message}
}

// WrapEmbeddingError 包装底层错误并标注失败类别
func WrapEmbeddingError(code ErrCode, message string, err error) EmbeddingError {
	return EmbeddingError{Code: code, Message: message, Err: err}
}
