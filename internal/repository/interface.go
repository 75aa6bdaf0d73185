package repository

import (
	"github.com/fyerfyer/kb-assistant/internal/models"
)

// DocumentRepository 文档摄取记录仓储接口
type DocumentRepository interface {
	// Upsert 按源文件名创建或更新文档记录
	Upsert(doc *models.Document) error

	// GetBySource 根据源文件名获取文档记录
	GetBySource(source string) (*models.Document, error)

	// List 列出文档记录，支持按状态筛选
	List(offset, limit int, status models.DocumentStatus) ([]*models.Document, int64, error)

	// Count 统计文档记录总数
	Count() (int64, error)

	// DeleteAll 删除全部文档记录，用于全量重建
	DeleteAll() error
}

// IngestRunRepository 摄取运行记录仓储接口
type IngestRunRepository interface {
	// Create 创建运行记录
	Create(run *models.IngestRun) error

	// Update 更新运行记录
	Update(run *models.IngestRun) error

	// GetByID 根据运行ID获取记录
	GetByID(id string) (*models.IngestRun, error)

	// List 按开始时间倒序列出运行记录
	List(offset, limit int) ([]*models.IngestRun, int64, error)
}
