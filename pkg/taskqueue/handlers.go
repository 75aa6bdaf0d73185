package taskqueue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Ingestor 摄取执行器接口
// 由服务层实现，处理器通过它触发真正的摄取流程
type Ingestor interface {
	// RunIngest 执行指定的摄取运行
	RunIngest(ctx context.Context, runID string, mode string) error
}

// IngestHandler 摄取运行任务处理器
type IngestHandler struct {
	ingestor Ingestor
	logger   *logrus.Logger
}

// NewIngestHandler 创建摄取任务处理器
func NewIngestHandler(ingestor Ingestor, logger *logrus.Logger) *IngestHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &IngestHandler{
		ingestor: ingestor,
		logger:   logger,
	}
}

// GetTaskTypes 返回此处理器支持的任务类型
func (h *IngestHandler) GetTaskTypes() []TaskType {
	return []TaskType{TaskIngestRun}
}

// ProcessTask 处理摄取运行任务
func (h *IngestHandler) ProcessTask(ctx context.Context, task *Task) error {
	if task.Type != TaskIngestRun {
		return fmt.Errorf("unsupported task type: %s", task.Type)
	}

	var payload IngestRunPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return ErrInvalidPayload
	}
	if payload.RunID == "" {
		return ErrInvalidPayload
	}

	h.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"run_id":  payload.RunID,
		"mode":    payload.Mode,
	}).Info("Processing ingest run task")

	if err := h.ingestor.RunIngest(ctx, payload.RunID, payload.Mode); err != nil {
		h.logger.WithError(err).WithField("run_id", payload.RunID).Error("Ingest run failed")
		return err
	}

	return nil
}
