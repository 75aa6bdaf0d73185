package vectordb

import (
	"errors"
	"time"
)

// 常用错误定义
var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidID        = errors.New("invalid record ID")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
)

// 元数据的固定键名
// 这组键是与查询端共享的契约，写入时必须完整携带
const (
	MetaSource     = "source"      // 源文件名
	MetaPage       = "page"        // 页号
	MetaType       = "type"        // 内容类型，如 pdf_text、docx_table
	MetaID         = "id"          // 分块标识符
	MetaTotalPages = "total_pages" // 文档总页数
	MetaHasTable   = "has_table"   // 是否包含表格
	MetaUsedOCR    = "used_ocr"    // 是否经过OCR提取
	MetaFileType   = "file_type"   // 文件类型
)

// Record 持久化的分块记录
// 以分块标识符为键，写入后不做原地修改
type Record struct {
	ID        string                 `json:"id"`         // 分块标识符
	Text      string                 `json:"text"`       // 分块文本内容
	Vector    []float32              `json:"vector"`     // 向量表示
	Metadata  map[string]interface{} `json:"metadata"`   // 元数据，携带固定键集合
	CreatedAt time.Time              `json:"created_at"` // 创建时间
}

// NewChunkMetadata 构造携带全部固定键的分块元数据
func NewChunkMetadata(id, source, fileType, chunkType string, page, totalPages int, hasTable, usedOCR bool) map[string]interface{} {
	return map[string]interface{}{
		MetaID:         id,
		MetaSource:     source,
		MetaFileType:   fileType,
		MetaType:       chunkType,
		MetaPage:       page,
		MetaTotalPages: totalPages,
		MetaHasTable:   hasTable,
		MetaUsedOCR:    usedOCR,
	}
}

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
	// Euclidean 欧几里得距离
	Euclidean DistanceType = "l2"
)

// SearchResult 搜索结果
type SearchResult struct {
	Record   Record  // 分块记录
	Score    float32 // 相似度得分
	Distance float32 // 计算的距离
}

// SearchFilter 搜索过滤条件
type SearchFilter struct {
	Sources    []string               // 按源文件名过滤
	Metadata   map[string]interface{} // 按元数据过滤
	MinScore   float32                // 最小相似度分数
	MaxResults int                    // 最大返回结果数
}

// DefaultSearchFilter 返回默认的搜索过滤器
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		MinScore:   0.0,
		MaxResults: 5,
	}
}

// Repository 向量数据库仓库接口
// 记录只增不改：重复摄取通过ListIDs做差集跳过已存在的分块
type Repository interface {
	// Add 添加单条记录
	Add(record Record) error

	// AddBatch 批量添加记录
	AddBatch(records []Record) error

	// Get 获取单条记录
	Get(id string) (Record, error)

	// ListIDs 返回所有已持久化的分块标识符
	ListIDs() ([]string, error)

	// Search 相似度搜索
	Search(vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Count 获取记录总数
	Count() (int, error)

	// Reset 清空所有记录，用于全量重建
	Reset() error

	// GetDimension 返回向量维数
	GetDimension() int

	// Close 关闭数据库连接
	Close() error
}

// Config 向量数据库配置
type Config struct {
	Type              string       // 数据库类型，如 "memory", "faiss"
	Path              string       // 数据库文件路径
	Dimension         int          // 向量维度
	DistanceType      DistanceType // 距离计算类型
	CreateIfNotExists bool         // 如果不存在是否创建
	InMemory          bool         // 是否仅在内存中运行
}

// Factory 向量数据库工厂函数类型
type Factory func(config Config) (Repository, error)

// RepositoryRegistry 注册可用的向量数据库实现
var RepositoryRegistry = map[string]Factory{}

// RegisterRepository 注册向量数据库工厂函数
func RegisterRepository(name string, factory Factory) {
	RepositoryRegistry[name] = factory
}

// NewRepository 根据配置创建向量数据库实例
func NewRepository(config Config) (Repository, error) {
	factory, ok := RepositoryRegistry[config.Type]
	if !ok {
		// 默认使用内存实现
		factory = NewMemoryRepository
	}
	return factory(config)
}
