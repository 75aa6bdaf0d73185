package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/kb-assistant/api/middleware"
	"github.com/fyerfyer/kb-assistant/api/model"
	"github.com/fyerfyer/kb-assistant/internal/services"
)

// QAHandler 处理问答相关的API请求
type QAHandler struct {
	qaService     *services.QAService     // 问答服务
	ingestService *services.IngestService // 摄取服务，用于统计查询
	logger        *logrus.Logger          // 日志记录器
}

// NewQAHandler 创建新的问答处理器
func NewQAHandler(qaService *services.QAService, ingestService *services.IngestService) *QAHandler {
	return &QAHandler{
		qaService:     qaService,
		ingestService: ingestService,
		logger:        middleware.GetLogger(),
	}
}

// Query 处理问答请求
// POST /api/query
func (h *QAHandler) Query(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的请求参数", err.Error()))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"question": req.Question,
		"k":        req.K,
	}).Info("Answering question")

	// 嵌入或大模型失败由错误中间件归类为上游错误
	result, err := h.qaService.Answer(c.Request.Context(), req.Question, req.K)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	resp := model.QueryResponse{
		Question: req.Question,
		Answer:   result.Answer,
		Sources:  model.ConvertSources(result.Sources),
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// QuerySimple 处理简化问答请求，只返回回答文本
// POST /api/query/simple
func (h *QAHandler) QuerySimple(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的请求参数", err.Error()))
		return
	}

	answer, err := h.qaService.AnswerSimple(c.Request.Context(), req.Question, req.K)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.SimpleQueryResponse{Answer: answer}))
}

// Stats 返回知识库统计信息
// GET /api/stats
func (h *QAHandler) Stats(c *gin.Context) {
	stats, err := h.ingestService.GetStats(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("获取统计信息失败", err.Error()))
		return
	}

	embedModel, llmModel := h.qaService.ModelNames()
	resp := model.StatsResponse{
		Documents:      stats.Documents,
		Chunks:         stats.Chunks,
		Dimension:      stats.Dimension,
		FailedFiles:    stats.FailedFiles,
		EmbeddingModel: embedModel,
		LLMModel:       llmModel,
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// Health 健康检查
// GET /api/health
// 检查向量库可达性，不可达时返回503
func (h *QAHandler) Health(c *gin.Context) {
	stats, err := h.ingestService.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"chunks": stats.Chunks,
	})
}
