package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/kb-assistant/api/model"
	"github.com/fyerfyer/kb-assistant/internal/embedding"
	"github.com/fyerfyer/kb-assistant/internal/llm"
)

func serveWithError(t *testing.T, err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorMiddleware())
	router.GET("/fail", func(c *gin.Context) {
		HandleError(c, err)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	return w
}

func TestClassifyError(t *testing.T) {
	t.Run("AppErrorPassesThrough", func(t *testing.T) {
		appErr := classifyError(NewNotFoundError("摄取运行不存在"))
		assert.Equal(t, ErrorTypeNotFound, appErr.Type)
		assert.Equal(t, http.StatusNotFound, appErr.Code)
	})

	t.Run("WrappedAppErrorPassesThrough", func(t *testing.T) {
		wrapped := fmt.Errorf("answer question: %w", NewValidationError("无效的请求参数"))
		appErr := classifyError(wrapped)
		assert.Equal(t, ErrorTypeValidation, appErr.Type)
		assert.Equal(t, http.StatusBadRequest, appErr.Code)
	})

	t.Run("EmbeddingFailureIsUpstream", func(t *testing.T) {
		cause := embedding.WrapEmbeddingError(embedding.ErrCodeUnreachable, "embedding service unreachable", errors.New("connection refused"))
		appErr := classifyError(fmt.Errorf("embed question: %w", cause))
		assert.Equal(t, ErrorTypeUpstream, appErr.Type)
		assert.Equal(t, http.StatusBadGateway, appErr.Code)
		assert.Contains(t, appErr.Details, "service_unreachable")
	})

	t.Run("LLMFailureIsUpstream", func(t *testing.T) {
		cause := llm.NewLLMError(llm.ErrCodeModelOverload, "model is overloaded")
		appErr := classifyError(fmt.Errorf("generate answer: %w", cause))
		assert.Equal(t, ErrorTypeUpstream, appErr.Type)
		assert.Equal(t, http.StatusBadGateway, appErr.Code)
	})

	t.Run("UnknownErrorIsInternal", func(t *testing.T) {
		appErr := classifyError(errors.New("database is locked"))
		assert.Equal(t, ErrorTypeInternal, appErr.Type)
		assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	})
}

func TestErrorMiddleware(t *testing.T) {
	t.Run("ValidationErrorReturns400", func(t *testing.T) {
		w := serveWithError(t, NewValidationError("无效的请求参数"))
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp model.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "无效的请求参数", resp.Message)
	})

	t.Run("NotFoundErrorReturns404", func(t *testing.T) {
		w := serveWithError(t, NewNotFoundError("摄取运行不存在"))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("EmbeddingErrorReturns502", func(t *testing.T) {
		cause := embedding.NewEmbeddingError(embedding.ErrCodeUnreachable, "embedding service unreachable")
		w := serveWithError(t, fmt.Errorf("embed question: %w", cause))
		require.Equal(t, http.StatusBadGateway, w.Code)

		var resp model.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "嵌入服务调用失败", resp.Message)
	})

	t.Run("LLMErrorReturns502", func(t *testing.T) {
		cause := llm.NewLLMError(llm.ErrCodeRateLimited, "rate limit reached")
		w := serveWithError(t, fmt.Errorf("generate answer: %w", cause))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("GenericErrorReturns500", func(t *testing.T) {
		w := serveWithError(t, errors.New("something broke"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("PanicRecoveredAs500", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(ErrorMiddleware())
		router.GET("/panic", func(c *gin.Context) {
			panic("unexpected state")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("NoErrorLeavesResponseAlone", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(ErrorMiddleware())
		router.GET("/ok", func(c *gin.Context) {
			c.JSON(http.StatusOK, model.NewSuccessResponse("ok"))
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
