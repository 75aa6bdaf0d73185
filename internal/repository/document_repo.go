package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fyerfyer/kb-assistant/internal/database"
	"github.com/fyerfyer/kb-assistant/internal/models"
)

// docRepository 文档摄取记录仓储实现
type docRepository struct {
	db *gorm.DB // 数据库连接
}

// NewDocumentRepository 创建文档仓储实例
func NewDocumentRepository() DocumentRepository {
	return &docRepository{
		db: database.MustDB(),
	}
}

// NewDocumentRepositoryWithDB 使用指定的数据库连接创建文档仓储实例
func NewDocumentRepositoryWithDB(db *gorm.DB) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{db: db}
}

// Upsert 按源文件名创建或更新文档记录
func (r *docRepository) Upsert(doc *models.Document) error {
	if doc.Source == "" {
		return errors.New("document source cannot be empty")
	}

	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"file_type", "status", "pages", "chunks_added", "chunks_skipped",
			"used_ocr", "error", "ingested_at", "updated_at",
		}),
	}).Create(doc).Error
}

// GetBySource 根据源文件名获取文档记录
func (r *docRepository) GetBySource(source string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("source = ?", source).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// List 列出文档记录，支持按状态筛选
func (r *docRepository) List(offset, limit int, status models.DocumentStatus) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := r.db.Model(&models.Document{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	err := query.Order("source asc").Offset(offset).Limit(limit).Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// Count 统计文档记录总数
func (r *docRepository) Count() (int64, error) {
	var total int64
	err := r.db.Model(&models.Document{}).Count(&total).Error
	return total, err
}

// DeleteAll 删除全部文档记录，用于全量重建
func (r *docRepository) DeleteAll() error {
	return r.db.Where("1 = 1").Delete(&models.Document{}).Error
}
