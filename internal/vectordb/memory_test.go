package vectordb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) Repository {
	repo, err := NewMemoryRepository(Config{Dimension: 4})
	require.NoError(t, err)
	return repo
}

// vec 构造一个测试向量
func vec(values ...float32) []float32 {
	v := make([]float32, 4)
	copy(v, values)
	return v
}

func chunkRecord(id, source, text string, v []float32) Record {
	return Record{
		ID:       id,
		Text:     text,
		Vector:   v,
		Metadata: NewChunkMetadata(id, source, "pdf", "pdf_text", 1, 1, false, false),
	}
}

func TestMemoryRepositoryAdd(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.Add(chunkRecord("a.pdf:pdf:page_1:chunk_0", "a.pdf", "text", vec(1))))

	record, err := repo.Get("a.pdf:pdf:page_1:chunk_0")
	require.NoError(t, err)
	assert.Equal(t, "text", record.Text)
	assert.False(t, record.CreatedAt.IsZero())

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// 缺少标识符或维度不符的记录被拒绝
	assert.ErrorIs(t, repo.Add(Record{Vector: vec(1)}), ErrInvalidID)
	assert.Error(t, repo.Add(Record{ID: "x", Vector: []float32{1, 2}}))
	assert.ErrorIs(t, repo.Add(Record{ID: "x"}), ErrEmptyVector)

	_, err = repo.Get("missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryRepositoryListIDs(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.AddBatch([]Record{
		chunkRecord("b.pdf:pdf:page_1:chunk_0", "b.pdf", "b", vec(1)),
		chunkRecord("a.pdf:pdf:page_1:chunk_0", "a.pdf", "a", vec(1)),
		chunkRecord("a.pdf:pdf:page_2:chunk_0", "a.pdf", "a2", vec(1)),
	}))

	ids, err := repo.ListIDs()
	require.NoError(t, err)
	// 排序后返回，遍历顺序稳定
	assert.Equal(t, []string{
		"a.pdf:pdf:page_1:chunk_0",
		"a.pdf:pdf:page_2:chunk_0",
		"b.pdf:pdf:page_1:chunk_0",
	}, ids)
}

func TestMemoryRepositorySearch(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.AddBatch([]Record{
		chunkRecord("close", "a.pdf", "close match", vec(1, 0, 0, 0)),
		chunkRecord("far", "a.pdf", "far match", vec(0, 1, 0, 0)),
		chunkRecord("mid", "b.pdf", "middling", vec(1, 1, 0, 0)),
	}))

	t.Run("OrderedByScore", func(t *testing.T) {
		results, err := repo.Search(vec(1, 0, 0, 0), SearchFilter{MaxResults: 10})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "close", results[0].Record.ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-5)
		assert.Equal(t, "mid", results[1].Record.ID)
		assert.Equal(t, "far", results[2].Record.ID)
	})

	t.Run("MaxResultsLimits", func(t *testing.T) {
		results, err := repo.Search(vec(1, 0, 0, 0), SearchFilter{MaxResults: 1})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "close", results[0].Record.ID)
	})

	t.Run("MinScoreFilters", func(t *testing.T) {
		results, err := repo.Search(vec(1, 0, 0, 0), SearchFilter{MinScore: 0.9, MaxResults: 10})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "close", results[0].Record.ID)
	})

	t.Run("SourceFilter", func(t *testing.T) {
		results, err := repo.Search(vec(1, 0, 0, 0), SearchFilter{
			Sources:    []string{"b.pdf"},
			MaxResults: 10,
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "mid", results[0].Record.ID)
	})

	t.Run("MetadataFilter", func(t *testing.T) {
		results, err := repo.Search(vec(1, 0, 0, 0), SearchFilter{
			Metadata:   map[string]interface{}{MetaSource: "a.pdf"},
			MaxResults: 10,
		})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("DimensionMismatchRejected", func(t *testing.T) {
		_, err := repo.Search([]float32{1, 2}, SearchFilter{})
		assert.Error(t, err)
	})
}

func TestMemoryRepositoryReset(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.Add(chunkRecord("a.pdf:pdf:page_1:chunk_0", "a.pdf", "x", vec(1))))
	require.NoError(t, repo.Reset())

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	ids, err := repo.ListIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRepositoryFactory(t *testing.T) {
	repo, err := NewRepository(Config{Type: "memory", Dimension: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, repo.GetDimension())

	// 未知类型回退到内存实现
	repo, err = NewRepository(Config{Type: "something-else", Dimension: 4})
	require.NoError(t, err)
	assert.NotNil(t, repo)
}

func TestChunkMetadataKeys(t *testing.T) {
	meta := NewChunkMetadata("Report.pdf:pdf:page_3_table_ocr:chunk_0", "Report.pdf", "pdf", "pdf_table", 3, 10, true, true)

	assert.Equal(t, "Report.pdf", meta[MetaSource])
	assert.Equal(t, 3, meta[MetaPage])
	assert.Equal(t, "pdf_table", meta[MetaType])
	assert.Equal(t, "Report.pdf:pdf:page_3_table_ocr:chunk_0", meta[MetaID])
	assert.Equal(t, 10, meta[MetaTotalPages])
	assert.Equal(t, true, meta[MetaHasTable])
	assert.Equal(t, true, meta[MetaUsedOCR])
	assert.Equal(t, "pdf", meta[MetaFileType])
}

func TestDistanceToScore(t *testing.T) {
	assert.InDelta(t, 1.0, DistanceToScore(0, Cosine), 1e-6)
	assert.InDelta(t, 0.5, DistanceToScore(0.5, Cosine), 1e-6)
	assert.InDelta(t, 1.0, DistanceToScore(1, DotProduct), 1e-6)
	assert.InDelta(t, 1.0, DistanceToScore(0, Euclidean), 1e-6)
	assert.Greater(t, DistanceToScore(1, Euclidean), DistanceToScore(2, Euclidean))
}
