package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskIngestRun 知识库摄取运行任务
	TaskIngestRun TaskType = "ingest_run"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	RunID       string          `json:"run_id"`       // 关联的摄取运行ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据
	Result      json.RawMessage `json:"result"`       // 任务结果数据
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// IngestRunPayload 摄取运行任务载荷
type IngestRunPayload struct {
	RunID string `json:"run_id"` // 摄取运行ID
	Mode  string `json:"mode"`   // 摄取模式：incremental 或 reset
}

// IngestRunResult 摄取运行任务结果
type IngestRunResult struct {
	RunID         string `json:"run_id"`          // 摄取运行ID
	FilesTotal    int    `json:"files_total"`     // 发现的源文件数
	FilesOK       int    `json:"files_ok"`        // 成功处理的文件数
	FilesFailed   int    `json:"files_failed"`    // 处理失败的文件数
	ChunksAdded   int    `json:"chunks_added"`    // 写入的分块数
	ChunksSkipped int    `json:"chunks_skipped"`  // 跳过的分块数
	Error         string `json:"error,omitempty"` // 整体失败时的错误信息
}
