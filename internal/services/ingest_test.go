package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fyerfyer/kb-assistant/internal/document"
	"github.com/fyerfyer/kb-assistant/internal/ingest"
	"github.com/fyerfyer/kb-assistant/internal/models"
	"github.com/fyerfyer/kb-assistant/internal/repository"
	"github.com/fyerfyer/kb-assistant/internal/vectordb"
	"github.com/fyerfyer/kb-assistant/pkg/storage"
)

// stubEmbedder 测试用嵌入客户端
type stubEmbedder struct {
	dimension int
	fail      bool
}

func (m *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.fail {
		return nil, errors.New("embedding service unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, m.dimension)
		vec[0] = 1.0
		vec[1] = float32(len(text)%13) * 0.05
		vectors[i] = vec
	}
	return vectors, nil
}

func (m *stubEmbedder) Name() string { return "stub" }

type ingestFixture struct {
	service *IngestService
	store   *storage.LocalStorage
	db      vectordb.Repository
	docRepo repository.DocumentRepository
	runRepo repository.IngestRunRepository
}

func setupIngest(t *testing.T) *ingestFixture {
	gormDB, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&models.Document{}, &models.IngestRun{}))

	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	vectorDB, err := vectordb.NewMemoryRepository(vectordb.Config{Dimension: 8})
	require.NoError(t, err)

	quiet := logrus.New()
	quiet.SetLevel(logrus.ErrorLevel)

	gate, err := ingest.NewGate(vectorDB, &stubEmbedder{dimension: 8}, ingest.WithLogger(quiet))
	require.NoError(t, err)

	splitter := document.MustSplitter()

	docRepo := repository.NewDocumentRepositoryWithDB(gormDB)
	runRepo := repository.NewIngestRunRepositoryWithDB(gormDB)

	service := NewIngestService(store, splitter, gate, vectorDB, docRepo, runRepo,
		WithIngestLogger(quiet))

	return &ingestFixture{
		service: service,
		store:   store,
		db:      vectorDB,
		docRepo: docRepo,
		runRepo: runRepo,
	}
}

func addFile(t *testing.T, f *ingestFixture, name, content string) {
	_, err := f.store.Save(strings.NewReader(content), name)
	require.NoError(t, err)
}

func TestIngestServiceRun(t *testing.T) {
	t.Run("IngestsPlainTextFiles", func(t *testing.T) {
		f := setupIngest(t)
		addFile(t, f, "notes.txt", "Go is a statically typed language designed at Google.")
		addFile(t, f, "guide.md", "# Setup\n\nInstall the binary and run it.")

		run, err := f.service.Run(context.Background(), models.ModeIncremental)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, run.Status)
		assert.Equal(t, 2, run.FilesTotal)
		assert.Equal(t, 2, run.FilesOK)
		assert.Equal(t, 0, run.FilesFailed)
		assert.Equal(t, 2, run.ChunksAdded)
		assert.NotNil(t, run.FinishedAt)

		count, err := f.db.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		ids, err := f.db.ListIDs()
		require.NoError(t, err)
		assert.Contains(t, ids, "notes.txt:plaintext:page_1:chunk_0")
		assert.Contains(t, ids, "guide.md:markdown:page_1:chunk_0")
	})

	t.Run("SecondRunSkipsExistingChunks", func(t *testing.T) {
		f := setupIngest(t)
		addFile(t, f, "notes.txt", "Some knowledge base content here.")

		first, err := f.service.Run(context.Background(), models.ModeIncremental)
		require.NoError(t, err)
		assert.Equal(t, 1, first.ChunksAdded)

		second, err := f.service.Run(context.Background(), models.ModeIncremental)
		require.NoError(t, err)
		assert.Equal(t, 0, second.ChunksAdded)
		assert.Equal(t, 1, second.ChunksSkipped)

		count, err := f.db.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("ResetModeClearsStore", func(t *testing.T) {
		f := setupIngest(t)
		addFile(t, f, "notes.txt", "Original content.")

		_, err := f.service.Run(context.Background(), models.ModeIncremental)
		require.NoError(t, err)

		// 全量重建后所有分块重新写入而不是跳过
		run, err := f.service.Run(context.Background(), models.ModeReset)
		require.NoError(t, err)
		assert.Equal(t, 1, run.ChunksAdded)
		assert.Equal(t, 0, run.ChunksSkipped)
	})

	t.Run("UnsupportedFileCountsAsFailed", func(t *testing.T) {
		f := setupIngest(t)
		addFile(t, f, "notes.txt", "Valid content.")
		addFile(t, f, "image.png", "not a document")

		run, err := f.service.Run(context.Background(), models.ModeIncremental)
		require.NoError(t, err)
		assert.Equal(t, 2, run.FilesTotal)
		assert.Equal(t, 1, run.FilesOK)
		assert.Equal(t, 1, run.FilesFailed)

		doc, err := f.docRepo.GetBySource("image.png")
		require.NoError(t, err)
		assert.Equal(t, models.DocStatusFailed, doc.Status)
		assert.NotEmpty(t, doc.Error)
	})

	t.Run("DocumentRecordsPersisted", func(t *testing.T) {
		f := setupIngest(t)
		addFile(t, f, "notes.txt", "Content for the record.")

		_, err := f.service.Run(context.Background(), models.ModeIncremental)
		require.NoError(t, err)

		doc, err := f.docRepo.GetBySource("notes.txt")
		require.NoError(t, err)
		assert.Equal(t, models.DocStatusCompleted, doc.Status)
		assert.Equal(t, 1, doc.Pages)
		assert.Equal(t, 1, doc.ChunksAdded)
		assert.NotNil(t, doc.IngestedAt)
	})

	t.Run("RunSummaryQueryable", func(t *testing.T) {
		f := setupIngest(t)
		addFile(t, f, "notes.txt", "Content.")

		run, err := f.service.Run(context.Background(), models.ModeIncremental)
		require.NoError(t, err)

		got, err := f.runRepo.GetByID(run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.FilesTotal, got.FilesTotal)
		assert.NotEmpty(t, got.Files)
	})

	t.Run("InvalidModeRejected", func(t *testing.T) {
		f := setupIngest(t)
		_, err := f.service.StartRun(context.Background(), models.IngestMode("bogus"))
		assert.Error(t, err)
	})
}

func TestIngestServiceStats(t *testing.T) {
	f := setupIngest(t)
	addFile(t, f, "notes.txt", "Stats content.")

	_, err := f.service.Run(context.Background(), models.ModeIncremental)
	require.NoError(t, err)

	stats, err := f.service.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Documents)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 8, stats.Dimension)
	assert.Equal(t, int64(0), stats.FailedFiles)
}
