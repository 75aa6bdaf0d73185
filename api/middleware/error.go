package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/kb-assistant/api/model"
	"github.com/fyerfyer/kb-assistant/internal/embedding"
	"github.com/fyerfyer/kb-assistant/internal/llm"
)

// 这套API的错误类别
// 没有认证层，错误只分四类：请求不合法、资源不存在、
// 依赖的模型服务失败、其余一律内部错误
const (
	ErrorTypeValidation = "VALIDATION_ERROR" // 请求参数不合法
	ErrorTypeNotFound   = "NOT_FOUND_ERROR"  // 资源不存在
	ErrorTypeUpstream   = "UPSTREAM_ERROR"   // 嵌入或大模型服务调用失败
	ErrorTypeInternal   = "INTERNAL_ERROR"   // 内部服务器错误
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // HTTP状态码
}

// Error 实现error接口
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建请求参数错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewUpstreamError 创建模型服务调用失败错误
func NewUpstreamError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeUpstream,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadGateway,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// classifyError 把处理器上报的错误归入API错误类别
// 嵌入和大模型的失败类别穿透到HTTP层：模型服务的问题对客户端是502而不是500
func classifyError(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var appErrPtr *AppError
	if errors.As(err, &appErrPtr) && appErrPtr != nil {
		return *appErrPtr
	}

	var embErr embedding.EmbeddingError
	if errors.As(err, &embErr) {
		return NewUpstreamError("嵌入服务调用失败", string(embErr.Code))
	}
	var llmErr llm.LLMError
	if errors.As(err, &llmErr) {
		return NewUpstreamError("大模型调用失败", string(llmErr.Code))
	}

	return NewInternalError("Internal server error", err.Error())
}

// ErrorMiddleware 统一错误处理中间件
// 捕获panic，并把处理器通过HandleError上报的错误渲染为统一的错误响应
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"error": r,
					"stack": string(debug.Stack()),
					"path":  c.Request.URL.Path,
				}).Error("Panic recovered in API request")

				errResp := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)
				if gin.Mode() == gin.DebugMode {
					errResp.Message = fmt.Sprintf("Panic: %v", r)
				}
				if traceID, exists := c.Get("TraceID"); exists {
					errResp.TraceID = traceID.(string)
				}

				c.AbortWithStatusJSON(http.StatusInternalServerError, errResp)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := classifyError(c.Errors.Last().Err)

		traceID := ""
		if traceIDValue, exists := c.Get("TraceID"); exists {
			traceID = traceIDValue.(string)
		}

		log.WithFields(logrus.Fields{
			"error_type": appErr.Type,
			"details":    appErr.Details,
			"trace_id":   traceID,
			"path":       c.Request.URL.Path,
		}).Error(appErr.Message)

		errResp := model.NewErrorResponse(appErr.Code, appErr.Message)
		errResp.TraceID = traceID
		if gin.Mode() == gin.DebugMode && appErr.Details != "" {
			errResp.Message = appErr.Message + ": " + appErr.Details
		}

		c.JSON(appErr.Code, errResp)
		c.Abort()
	}
}

// HandleError 在处理器中上报错误，由ErrorMiddleware统一渲染
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
