package models

import (
	"time"

	"gorm.io/gorm"
)

// DocumentStatus 文档摄取状态类型
type DocumentStatus string

const (
	// DocStatusPending 文档已发现，等待处理
	DocStatusPending DocumentStatus = "pending"
	// DocStatusProcessing 文档处理中
	DocStatusProcessing DocumentStatus = "processing"
	// DocStatusCompleted 文档处理完成
	DocStatusCompleted DocumentStatus = "completed"
	// DocStatusFailed 文档处理失败
	DocStatusFailed DocumentStatus = "failed"
)

// Document 文档摄取记录
// 每个源文件一条记录，跟踪最近一次摄取的结果
type Document struct {
	ID            uint           `gorm:"primaryKey;autoIncrement"` // 主键ID
	Source        string         `gorm:"not null;uniqueIndex"`     // 源文件名
	FileType      string         `gorm:"not null;size:20"`         // 文件类型
	Status        DocumentStatus `gorm:"not null;index;size:20"`   // 摄取状态
	Pages         int            `gorm:"not null;default:0"`       // 解析出的页面数
	ChunksAdded   int            `gorm:"not null;default:0"`       // 最近一次运行写入的分块数
	ChunksSkipped int            `gorm:"not null;default:0"`       // 最近一次运行跳过的分块数
	UsedOCR       bool           `gorm:"not null;default:false"`   // 是否有页面经过OCR提取
	Error         string         `gorm:"type:text"`                // 错误信息
	IngestedAt    *time.Time     `gorm:"index"`                    // 最近一次成功摄取时间
	CreatedAt     time.Time      `gorm:"not null"`                 // 创建时间
	UpdatedAt     time.Time      `gorm:"not null"`                 // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Document) TableName() string {
	return "documents"
}
