package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IngestMode 摄取模式
type IngestMode string

const (
	// ModeIncremental 增量摄取，跳过已存在的分块
	ModeIncremental IngestMode = "incremental"
	// ModeReset 全量重建，先清空向量库再摄取
	ModeReset IngestMode = "reset"
)

// RunStatus 摄取运行状态
type RunStatus string

const (
	// RunStatusRunning 运行中
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted 运行完成
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed 运行失败
	RunStatusFailed RunStatus = "failed"
)

// IngestRun 一次摄取运行的汇总记录
type IngestRun struct {
	ID            string         `gorm:"primaryKey;size:36"`     // 运行ID，UUID
	Mode          IngestMode     `gorm:"not null;size:20"`       // 摄取模式
	Status        RunStatus      `gorm:"not null;index;size:20"` // 运行状态
	FilesTotal    int            `gorm:"not null;default:0"`     // 发现的源文件数
	FilesOK       int            `gorm:"not null;default:0"`     // 成功处理的文件数
	FilesFailed   int            `gorm:"not null;default:0"`     // 处理失败的文件数
	ChunksAdded   int            `gorm:"not null;default:0"`     // 写入的分块数
	ChunksSkipped int            `gorm:"not null;default:0"`     // 已存在而跳过的分块数
	Error         string         `gorm:"type:text"`              // 整体失败时的错误信息
	Files         datatypes.JSON `gorm:"type:json"`              // 每个文件的处理明细
	StartedAt     time.Time      `gorm:"not null;index"`         // 开始时间
	FinishedAt    *time.Time     `gorm:""`                       // 结束时间
	CreatedAt     time.Time      `gorm:"not null"`               // 创建时间
	UpdatedAt     time.Time      `gorm:"not null"`               // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (r *IngestRun) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = now
	}
	r.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (r *IngestRun) BeforeUpdate(tx *gorm.DB) (err error) {
	r.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (IngestRun) TableName() string {
	return "ingest_runs"
}

// FileResult 单个文件的处理明细，序列化进IngestRun.Files
type FileResult struct {
	Source        string `json:"source"`          // 源文件名
	FileType      string `json:"file_type"`       // 文件类型
	Status        string `json:"status"`          // 处理结果
	Pages         int    `json:"pages"`           // 解析出的页面数
	ChunksAdded   int    `json:"chunks_added"`    // 写入的分块数
	ChunksSkipped int    `json:"chunks_skipped"`  // 跳过的分块数
	Error         string `json:"error,omitempty"` // 失败原因
}
