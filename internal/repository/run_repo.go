package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/fyerfyer/kb-assistant/internal/database"
	"github.com/fyerfyer/kb-assistant/internal/models"
)

// runRepository 摄取运行记录仓储实现
type runRepository struct {
	db *gorm.DB // 数据库连接
}

// NewIngestRunRepository 创建摄取运行仓储实例
func NewIngestRunRepository() IngestRunRepository {
	return &runRepository{
		db: database.MustDB(),
	}
}

// NewIngestRunRepositoryWithDB 使用指定的数据库连接创建摄取运行仓储实例
func NewIngestRunRepositoryWithDB(db *gorm.DB) IngestRunRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &runRepository{db: db}
}

// Create 创建运行记录
func (r *runRepository) Create(run *models.IngestRun) error {
	if run.ID == "" {
		return errors.New("run ID cannot be empty")
	}
	return r.db.Create(run).Error
}

// Update 更新运行记录
func (r *runRepository) Update(run *models.IngestRun) error {
	if run.ID == "" {
		return errors.New("run ID cannot be empty")
	}
	return r.db.Save(run).Error
}

// GetByID 根据运行ID获取记录
func (r *runRepository) GetByID(id string) (*models.IngestRun, error) {
	var run models.IngestRun
	err := r.db.Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// List 按开始时间倒序列出运行记录
func (r *runRepository) List(offset, limit int) ([]*models.IngestRun, int64, error) {
	var runs []*models.IngestRun
	var total int64

	if err := r.db.Model(&models.IngestRun{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	err := r.db.Order("started_at desc").Offset(offset).Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}
