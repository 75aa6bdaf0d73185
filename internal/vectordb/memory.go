package vectordb

import (
	"sort"
	"sync"
	"time"
)

// MemoryRepository 内存向量仓库实现
// 用于开发和测试环境的简单内存存储
type MemoryRepository struct {
	mu           sync.RWMutex      // 读写锁，确保并发安全
	records      map[string]Record // 记录存储，分块标识符到记录的映射
	dimension    int               // 向量维度
	distanceType DistanceType      // 距离计算类型
}

// NewMemoryRepository 创建内存向量仓库
func NewMemoryRepository(config Config) (Repository, error) {
	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	return &MemoryRepository{
		records:      make(map[string]Record),
		dimension:    config.Dimension,
		distanceType: distType,
	}, nil
}

// Add 添加单条记录
func (r *MemoryRepository) Add(record Record) error {
	return r.AddBatch([]Record{record})
}

// AddBatch 批量添加记录
func (r *MemoryRepository) AddBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	for i := range records {
		if records[i].ID == "" {
			return ErrInvalidID
		}
		if err := ValidateVector(records[i].Vector, r.dimension); err != nil {
			return err
		}
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = time.Now()
		}
		if records[i].Metadata == nil {
			records[i].Metadata = make(map[string]interface{})
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range records {
		r.records[record.ID] = record
	}
	return nil
}

// Get 获取单条记录
func (r *MemoryRepository) Get(id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return Record{}, ErrRecordNotFound
	}
	return record, nil
}

// ListIDs 返回所有分块标识符（排序后，保证遍历顺序稳定）
func (r *MemoryRepository) ListIDs() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Search 相似度搜索，线性扫描全部记录
func (r *MemoryRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	maxResults := filter.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultSearchFilter().MaxResults
	}

	var results []SearchResult
	for _, record := range r.records {
		if !matchSources(record.Metadata, filter.Sources) {
			continue
		}
		if !matchMetadata(record.Metadata, filter.Metadata) {
			continue
		}

		dist, err := ComputeDistance(vector, record.Vector, r.distanceType)
		if err != nil {
			return nil, err
		}

		score := DistanceToScore(dist, r.distanceType)
		if score < filter.MinScore {
			continue
		}

		results = append(results, SearchResult{
			Record:   record,
			Score:    score,
			Distance: dist,
		})
	}

	SortSearchResults(results)
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	return results, nil
}

// Count 获取记录总数
func (r *MemoryRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

// Reset 清空所有记录
func (r *MemoryRepository) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]Record)
	return nil
}

// GetDimension 返回向量维数
func (r *MemoryRepository) GetDimension() int {
	return r.dimension
}

// Close 关闭仓库（内存实现无需额外操作）
func (r *MemoryRepository) Close() error {
	return nil
}

func init() {
	RegisterRepository("memory", NewMemoryRepository)
}
