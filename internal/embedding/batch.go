package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
)

// BatchEmbedder 并行批量嵌入器
// 把一组文本按固定大小切成子批，由工作池并行发给嵌入客户端，
// 向量按原始文本顺序拼回；任何子批失败则整组失败
type BatchEmbedder struct {
	client    Client
	batchSize int // 单个子批的文本数量
	workers   int // 并行工作协程数
}

// NewBatchEmbedder 创建批量嵌入器
// workers为1时退化为顺序处理，子批之间的调用顺序与文本顺序一致
func NewBatchEmbedder(client Client, batchSize int, workers int) *BatchEmbedder {
	if batchSize <= 0 {
		batchSize = 16
	}
	if workers <= 0 {
		workers = 1
	}
	return &BatchEmbedder{
		client:    client,
		batchSize: batchSize,
		workers:   workers,
	}
}

// EmbedAll 嵌入全部文本，返回与输入同序同长的向量列表
func (b *BatchEmbedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, len(texts))
	wp := workerpool.New(b.workers)

	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end

		wp.Submit(func() {
			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed {
				return
			}

			select {
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			default:
			}

			batch, err := b.client.EmbedBatch(ctx, texts[start:end])
			if err == nil && len(batch) != end-start {
				err = fmt.Errorf("embedding count mismatch: expected %d, got %d", end-start, len(batch))
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to embed texts [%d:%d): %w", start, end, err)
				}
				mu.Unlock()
				return
			}

			// 子批按索引区间写回，并行完成也不会打乱顺序
			copy(vectors[start:end], batch)
		})
	}

	wp.StopWait()

	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}
