package ingest

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/kb-assistant/internal/embedding"
	"github.com/fyerfyer/kb-assistant/internal/vectordb"
)

// DefaultBatchSize 嵌入和写入的默认批大小
const DefaultBatchSize = 16

// UpsertResult 一次写入的统计结果
type UpsertResult struct {
	Added   int // 实际写入的分块数
	Skipped int // 已存在而跳过的分块数
}

// Gate 摄取写入闸门
// 通过与已持久化标识符集合做差集实现幂等写入：
// 已存在的分块跳过，失败批次的分块不计为已写入，下次运行仍然可见
type Gate struct {
	db        vectordb.Repository
	batcher   *embedding.BatchEmbedder
	batchSize int
	workers   int
	logger    *logrus.Logger
}

// GateOption Gate配置选项函数类型
type GateOption func(*Gate)

// WithBatchSize 设置批处理大小
func WithBatchSize(size int) GateOption {
	return func(g *Gate) {
		if size > 0 {
			g.batchSize = size
		}
	}
}

// WithWorkers 设置嵌入并行度
// 大于1时每个持久化批次再切成子批并行嵌入
func WithWorkers(n int) GateOption {
	return func(g *Gate) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate 创建摄取写入闸门
func NewGate(db vectordb.Repository, embedder embedding.Client, opts ...GateOption) (*Gate, error) {
	if db == nil {
		return nil, fmt.Errorf("vector repository is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedding client is required")
	}

	gate := &Gate{
		db:        db,
		batchSize: DefaultBatchSize,
		workers:   1,
		logger:    logrus.New(),
	}
	for _, opt := range opts {
		opt(gate)
	}

	// 并行时把持久化批次均分给各工作协程；
	// 单协程时子批即整批，对嵌入服务的调用次数与批次数一致
	subBatch := gate.batchSize
	if gate.workers > 1 {
		subBatch = (gate.batchSize + gate.workers - 1) / gate.workers
	}
	gate.batcher = embedding.NewBatchEmbedder(embedder, subBatch, gate.workers)

	return gate, nil
}

// Upsert 将分块写入向量库，跳过已存在的分块
// 分块必须已经由AssignIDs分配过标识符
// 部分批次失败时返回已完成的统计和错误，失败批次的分块保持未写入状态
func (g *Gate) Upsert(ctx context.Context, chunks []ChunkRef) (UpsertResult, error) {
	result := UpsertResult{}
	if len(chunks) == 0 {
		return result, nil
	}

	existingIDs, err := g.db.ListIDs()
	if err != nil {
		return result, fmt.Errorf("failed to list existing chunk ids: %w", err)
	}

	existing := make(map[string]struct{}, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = struct{}{}
	}

	var newChunks []ChunkRef
	for _, chunk := range chunks {
		if chunk.ID == "" {
			return result, fmt.Errorf("chunk without assigned id (source=%s page=%d)", chunk.Source, chunk.Page)
		}
		if _, ok := existing[chunk.ID]; ok {
			result.Skipped++
			continue
		}
		newChunks = append(newChunks, chunk)
	}

	g.logger.WithFields(logrus.Fields{
		"total":    len(chunks),
		"existing": len(existing),
		"new":      len(newChunks),
		"skipped":  result.Skipped,
	}).Info("Upsert gate computed chunk set difference")

	if len(newChunks) == 0 {
		return result, nil
	}

	for start := 0; start < len(newChunks); start += g.batchSize {
		end := start + g.batchSize
		if end > len(newChunks) {
			end = len(newChunks)
		}
		batch := newChunks[start:end]

		if err := g.writeBatch(ctx, batch); err != nil {
			g.logger.WithFields(logrus.Fields{
				"batch_start": start,
				"batch_size":  len(batch),
				"error":       err.Error(),
			}).Error("Failed to write chunk batch")
			return result, err
		}
		result.Added += len(batch)
	}

	return result, nil
}

// writeBatch 嵌入并写入一个批次
func (g *Gate) writeBatch(ctx context.Context, batch []ChunkRef) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	vectors, err := g.batcher.EmbedAll(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}

	records := make([]vectordb.Record, len(batch))
	for i, chunk := range batch {
		records[i] = vectordb.Record{
			ID:     chunk.ID,
			Text:   chunk.Text,
			Vector: vectors[i],
			Metadata: vectordb.NewChunkMetadata(
				chunk.ID,
				chunk.Source,
				chunk.FileType,
				ChunkType(chunk.FileType, chunk.HasTable),
				chunk.Page,
				chunk.TotalPages,
				chunk.HasTable,
				chunk.UsedOCR,
			),
		}
	}

	if err := g.db.AddBatch(records); err != nil {
		return fmt.Errorf("failed to add batch to vector store: %w", err)
	}
	return nil
}
