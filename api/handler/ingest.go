package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/kb-assistant/api/middleware"
	"github.com/fyerfyer/kb-assistant/api/model"
	"github.com/fyerfyer/kb-assistant/internal/models"
	"github.com/fyerfyer/kb-assistant/internal/services"
	"github.com/fyerfyer/kb-assistant/pkg/taskqueue"
)

// IngestHandler 处理知识库摄取相关的API请求
type IngestHandler struct {
	ingestService *services.IngestService // 摄取服务
	queue         taskqueue.Queue         // 任务队列，为nil时同步执行摄取
	logger        *logrus.Logger          // 日志记录器
}

// NewIngestHandler 创建新的摄取处理器
// queue为nil时摄取在请求内同步执行
func NewIngestHandler(ingestService *services.IngestService, queue taskqueue.Queue) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		queue:         queue,
		logger:        middleware.GetLogger(),
	}
}

// TriggerIngest 触发一次摄取运行
// POST /api/ingest
func (h *IngestHandler) TriggerIngest(c *gin.Context) {
	var req model.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的请求参数", err.Error()))
		return
	}

	mode := models.IngestMode(req.Mode)
	if mode == "" {
		mode = models.ModeIncremental
	}

	h.logger.WithField("mode", mode).Info("Ingest run requested")

	// 有任务队列时异步执行，否则在请求内同步完成
	if h.queue != nil {
		run, err := h.ingestService.StartRun(c.Request.Context(), mode)
		if err != nil {
			middleware.HandleError(c, middleware.NewInternalError("创建摄取任务失败", err.Error()))
			return
		}

		payload := taskqueue.IngestRunPayload{RunID: run.ID, Mode: string(mode)}
		taskID, err := h.queue.Enqueue(c.Request.Context(), taskqueue.TaskIngestRun, run.ID, payload)
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"error":  err.Error(),
				"run_id": run.ID,
			}).Error("Failed to enqueue ingest task")
			middleware.HandleError(c, middleware.NewInternalError("提交摄取任务失败", err.Error()))
			return
		}

		c.JSON(http.StatusAccepted, model.NewSuccessResponse(model.IngestResponse{
			RunID:  run.ID,
			Mode:   string(run.Mode),
			Status: string(run.Status),
			TaskID: taskID,
		}))
		return
	}

	run, err := h.ingestService.Run(c.Request.Context(), mode)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("摄取执行失败", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.IngestResponse{
		RunID:  run.ID,
		Mode:   string(run.Mode),
		Status: string(run.Status),
	}))
}

// GetRun 查询指定摄取运行的详情
// GET /api/ingest/runs/:id
func (h *IngestHandler) GetRun(c *gin.Context) {
	var req model.RunStatusRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的运行ID"))
		return
	}

	run, err := h.ingestService.GetRun(req.ID)
	if err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("摄取运行不存在"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("查询摄取运行失败", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ConvertRun(run)))
}

// ListRuns 列出摄取运行记录
// GET /api/ingest/runs
func (h *IngestHandler) ListRuns(c *gin.Context) {
	var req model.RunListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的分页参数", err.Error()))
		return
	}

	page := req.GetPage()
	pageSize := req.GetPageSize()

	runs, total, err := h.ingestService.ListRuns((page-1)*pageSize, pageSize)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("查询摄取运行列表失败", err.Error()))
		return
	}

	infos := make([]model.RunInfo, len(runs))
	for i, run := range runs {
		infos[i] = model.ConvertRun(run)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.RunListResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Runs:     infos,
	}))
}
