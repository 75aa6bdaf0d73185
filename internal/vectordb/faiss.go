package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissRepository 实现基于Faiss的向量仓库
// 向量存入Faiss索引，记录文本和元数据保存在旁路JSON文件中
type FaissRepository struct {
	mu             sync.RWMutex
	index          faiss.Index
	records        map[string]Record // 分块标识符到记录的映射
	positions      []string          // 索引位置到分块标识符的映射
	indexPath      string
	metaPath       string
	dimension      int
	distanceType   DistanceType
	saveOnClose    bool
	autoSave       bool
	autoSaveCount  int
	operationCount int
}

// NewFaissRepository 创建新的Faiss向量仓库
func NewFaissRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	if config.Path != "" && !config.InMemory {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %v", err)
		}
	}

	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	indexPath := config.Path
	metaPath := ""
	if indexPath != "" {
		metaPath = indexPath + ".meta.json"
	}

	repo := &FaissRepository{
		records:       make(map[string]Record),
		indexPath:     indexPath,
		metaPath:      metaPath,
		dimension:     config.Dimension,
		distanceType:  distType,
		saveOnClose:   true,
		autoSave:      true,
		autoSaveCount: 100,
	}

	var index faiss.Index
	var err error

	// 尝试从文件加载索引
	if indexPath != "" && !config.InMemory && fileExists(indexPath) {
		index, err = faiss.ReadIndex(indexPath, 0)
		if err != nil {
			if config.CreateIfNotExists {
				index, err = createFaissIndex(config.Dimension, distType)
				if err != nil {
					return nil, fmt.Errorf("failed to create Faiss index: %v", err)
				}
			} else {
				return nil, fmt.Errorf("failed to read index file: %v", err)
			}
		} else {
			if err := repo.loadMetadata(metaPath); err != nil {
				return nil, fmt.Errorf("failed to load records metadata: %v", err)
			}
		}
	} else {
		index, err = createFaissIndex(config.Dimension, distType)
		if err != nil {
			return nil, fmt.Errorf("failed to create Faiss index: %v", err)
		}
	}

	repo.index = index
	return repo, nil
}

// createFaissIndex 创建Faiss索引
func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	var metric int
	switch distType {
	case Cosine, DotProduct:
		metric = faiss.MetricInnerProduct
	case Euclidean:
		metric = faiss.MetricL2
	default:
		metric = faiss.MetricL2
	}
	return faiss.NewIndexFlat(dimension, metric)
}

// Add 添加单条记录到仓库
func (r *FaissRepository) Add(record Record) error {
	return r.AddBatch([]Record{record})
}

// AddBatch 批量添加记录到仓库
func (r *FaissRepository) AddBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	for i := range records {
		if records[i].ID == "" {
			return ErrInvalidID
		}
		if err := ValidateVector(records[i].Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for record %s: %v", records[i].ID, err)
		}
		if r.distanceType == Cosine {
			records[i].Vector = normalizeVector(records[i].Vector)
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
		if err := r.index.Add(record.Vector); err != nil {
			return fmt.Errorf("failed to add vector to index: %v", err)
		}
		r.records[record.ID] = record
		r.positions = append(r.positions, record.ID)
	}

	r.operationCount += len(records)
	if r.autoSave && r.operationCount >= r.autoSaveCount {
		if err := r.saveIndex(); err != nil {
			return fmt.Errorf("auto-save failed: %v", err)
		}
		r.operationCount = 0
	}
	return nil
}

// Get 获取单条记录
func (r *FaissRepository) Get(id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return Record{}, ErrRecordNotFound
	}
	return record, nil
}

// ListIDs 返回所有分块标识符（排序后，保证遍历顺序稳定）
func (r *FaissRepository) ListIDs() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Search 相似度搜索
func (r *FaissRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distanceType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.records) == 0 {
		return []SearchResult{}, nil
	}

	k := filter.MaxResults
	if k <= 0 {
		k = DefaultSearchFilter().MaxResults
	}

	total := int(r.index.Ntotal())
	if total == 0 {
		return []SearchResult{}, nil
	}

	// 过滤条件可能剔除大量候选，窗口不够凑满k条时加倍重查，
	// 直到收满或扫完整个索引
	queryLimit := growSearchWindow(0, k, total)
	for {
		distances, indices, err := r.index.Search(vector, int64(queryLimit))
		if err != nil {
			return nil, fmt.Errorf("failed to search index: %v", err)
		}

		results := r.collectResults(distances, indices, filter, k)
		if len(results) >= k || queryLimit >= total {
			SortSearchResults(results)
			return results, nil
		}
		queryLimit = growSearchWindow(queryLimit, k, total)
	}
}

// growSearchWindow 计算下一轮查询的候选窗口大小
// 初始取k的两倍，之后逐轮翻倍，封顶到索引总量
func growSearchWindow(current, k, total int) int {
	next := current * 2
	if next <= 0 {
		next = k * 2
	}
	if next > total {
		next = total
	}
	return next
}

// collectResults 过滤候选并转换为搜索结果，最多收集k条
func (r *FaissRepository) collectResults(distances []float32, indices []int64, filter SearchFilter, k int) []SearchResult {
	var results []SearchResult
	for i := 0; i < len(indices); i++ {
		idx := indices[i]
		if idx < 0 || int(idx) >= len(r.positions) {
			continue
		}

		record, exists := r.records[r.positions[idx]]
		if !exists {
			continue
		}

		if !matchSources(record.Metadata, filter.Sources) {
			continue
		}
		if !matchMetadata(record.Metadata, filter.Metadata) {
			continue
		}

		dist := distances[i]
		score := DistanceToScore(dist, r.distanceType)
		if score < filter.MinScore {
			continue
		}

		results = append(results, SearchResult{
			Record:   record,
			Score:    score,
			Distance: dist,
		})
		if len(results) >= k {
			break
		}
	}
	return results
}

// Count 获取记录总数
func (r *FaissRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

// Reset 清空所有记录并重建索引
// 索引文件和元数据文件一并删除，用于全量重建
func (r *FaissRepository) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := createFaissIndex(r.dimension, r.distanceType)
	if err != nil {
		return fmt.Errorf("failed to recreate Faiss index: %v", err)
	}

	r.index = index
	r.records = make(map[string]Record)
	r.positions = nil
	r.operationCount = 0

	if r.indexPath != "" {
		if err := os.Remove(r.indexPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove index file: %v", err)
		}
	}
	if r.metaPath != "" {
		if err := os.Remove(r.metaPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove metadata file: %v", err)
		}
	}

	return nil
}

// GetDimension 返回向量维数
func (r *FaissRepository) GetDimension() int {
	return r.dimension
}

// Close 关闭仓库
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveOnClose && r.indexPath != "" {
		if err := r.saveIndex(); err != nil {
			return fmt.Errorf("failed to save index on close: %v", err)
		}
	}
	return nil
}

// faissMetadata 旁路元数据文件结构
type faissMetadata struct {
	Records        map[string]Record `json:"records"`
	Positions      []string          `json:"positions"`
	OperationCount int               `json:"operation_count"`
}

// saveIndex 保存索引和记录数据到文件
func (r *FaissRepository) saveIndex() error {
	if r.indexPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.indexPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}
	if err := faiss.WriteIndex(r.index, r.indexPath); err != nil {
		return fmt.Errorf("failed to write index to file: %v", err)
	}
	return r.saveMetadata()
}

// saveMetadata 保存记录元数据到文件
func (r *FaissRepository) saveMetadata() error {
	if r.metaPath == "" {
		return nil
	}

	metadata := faissMetadata{
		Records:        r.records,
		Positions:      r.positions,
		OperationCount: r.operationCount,
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %v", err)
	}
	if err := os.WriteFile(r.metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %v", err)
	}
	return nil
}

// loadMetadata 从文件加载记录元数据
func (r *FaissRepository) loadMetadata(path string) error {
	if path == "" || !fileExists(path) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read metadata file: %v", err)
	}

	var metadata faissMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %v", err)
	}

	if metadata.Records != nil {
		r.records = metadata.Records
	}
	r.positions = metadata.Positions
	r.operationCount = metadata.OperationCount
	return nil
}

// fileExists 检查文件是否存在
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func init() {
	RegisterRepository("faiss", NewFaissRepository)
}
