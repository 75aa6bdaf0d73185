package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fyerfyer/kb-assistant/api/middleware"
	"github.com/fyerfyer/kb-assistant/api/model"
	"github.com/fyerfyer/kb-assistant/internal/cache"
	"github.com/fyerfyer/kb-assistant/internal/document"
	"github.com/fyerfyer/kb-assistant/internal/ingest"
	"github.com/fyerfyer/kb-assistant/internal/llm"
	"github.com/fyerfyer/kb-assistant/internal/models"
	"github.com/fyerfyer/kb-assistant/internal/repository"
	"github.com/fyerfyer/kb-assistant/internal/services"
	"github.com/fyerfyer/kb-assistant/internal/vectordb"
	"github.com/fyerfyer/kb-assistant/pkg/storage"
)

// stubEmbedder 测试用嵌入客户端
type stubEmbedder struct {
	dimension int
}

func (m *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, m.dimension)
		vec[0] = 1.0
		vectors[i] = vec
	}
	return vectors, nil
}

func (m *stubEmbedder) Name() string { return "stub" }

// stubLLM 测试用大模型客户端
type stubLLM struct {
	answer string
}

func (m *stubLLM) Generate(ctx context.Context, prompt string, options ...llm.GenerateOption) (*llm.Response, error) {
	return &llm.Response{Text: m.answer, ModelName: "stub"}, nil
}

func (m *stubLLM) Chat(ctx context.Context, messages []llm.Message, options ...llm.ChatOption) (*llm.Response, error) {
	return &llm.Response{Text: m.answer, ModelName: "stub"}, nil
}

func (m *stubLLM) Name() string { return "stub" }

type testEnv struct {
	router *gin.Engine
	store  *storage.LocalStorage
}

// setupAPI 组装一套使用内存组件的完整API栈
func setupAPI(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

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

	embedder := &stubEmbedder{dimension: 8}
	gate, err := ingest.NewGate(vectorDB, embedder, ingest.WithLogger(quiet))
	require.NoError(t, err)

	ingestService := services.NewIngestService(
		store,
		document.MustSplitter(),
		gate,
		vectorDB,
		repository.NewDocumentRepositoryWithDB(gormDB),
		repository.NewIngestRunRepositoryWithDB(gormDB),
		services.WithIngestLogger(quiet),
	)

	llmClient := &stubLLM{answer: "这是测试回答。"}
	qaCache, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	qaService := services.NewQAService(embedder, vectorDB, llmClient, llm.NewRAG(llmClient), qaCache,
		services.WithCacheTTL(time.Minute))

	qaHandler := NewQAHandler(qaService, ingestService)
	ingestHandler := NewIngestHandler(ingestService, nil)

	router := gin.New()
	router.Use(middleware.ErrorMiddleware())
	api := router.Group("/api")
	api.POST("/query", qaHandler.Query)
	api.POST("/query/simple", qaHandler.QuerySimple)
	api.GET("/stats", qaHandler.Stats)
	api.POST("/ingest", ingestHandler.TriggerIngest)
	api.GET("/ingest/runs", ingestHandler.ListRuns)
	api.GET("/ingest/runs/:id", ingestHandler.GetRun)
	api.GET("/health", qaHandler.Health)

	return &testEnv{router: router, store: store}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) *model.Response {
	var resp model.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

func ingestFile(t *testing.T, env *testEnv, name, content string) {
	_, err := env.store.Save(strings.NewReader(content), name)
	require.NoError(t, err)

	w := doJSON(t, env.router, http.MethodPost, "/api/ingest", model.IngestRequest{Mode: "incremental"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestQueryEndpoint(t *testing.T) {
	t.Run("AnswersAfterIngest", func(t *testing.T) {
		env := setupAPI(t)
		ingestFile(t, env, "notes.txt", "Deployment uses Docker containers.")

		w := doJSON(t, env.router, http.MethodPost, "/api/query", model.QueryRequest{Question: "如何部署？"})
		require.Equal(t, http.StatusOK, w.Code)

		resp := parseResponse(t, w)
		assert.Equal(t, 0, resp.Code)

		data, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		var query model.QueryResponse
		require.NoError(t, json.Unmarshal(data, &query))
		assert.Equal(t, "这是测试回答。", query.Answer)
		require.NotEmpty(t, query.Sources)
		assert.Equal(t, "notes.txt:plaintext:page_1:chunk_0", query.Sources[0].ID)
		assert.Equal(t, "notes.txt", query.Sources[0].File)
	})

	t.Run("MissingQuestionRejected", func(t *testing.T) {
		env := setupAPI(t)

		w := doJSON(t, env.router, http.MethodPost, "/api/query", map[string]interface{}{"k": 3})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("InvalidJSONRejected", func(t *testing.T) {
		env := setupAPI(t)

		req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("SimpleQueryReturnsAnswerOnly", func(t *testing.T) {
		env := setupAPI(t)
		ingestFile(t, env, "notes.txt", "Some content.")

		w := doJSON(t, env.router, http.MethodPost, "/api/query/simple", model.QueryRequest{Question: "问题？"})
		require.Equal(t, http.StatusOK, w.Code)

		resp := parseResponse(t, w)
		data, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		var simple model.SimpleQueryResponse
		require.NoError(t, json.Unmarshal(data, &simple))
		assert.Equal(t, "这是测试回答。", simple.Answer)
	})
}

func TestIngestEndpoint(t *testing.T) {
	t.Run("SynchronousRunCompletes", func(t *testing.T) {
		env := setupAPI(t)
		_, err := env.store.Save(strings.NewReader("File content."), "doc.txt")
		require.NoError(t, err)

		w := doJSON(t, env.router, http.MethodPost, "/api/ingest", model.IngestRequest{Mode: "incremental"})
		require.Equal(t, http.StatusOK, w.Code)

		resp := parseResponse(t, w)
		data, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		var ingestResp model.IngestResponse
		require.NoError(t, json.Unmarshal(data, &ingestResp))
		assert.NotEmpty(t, ingestResp.RunID)
		assert.Equal(t, "completed", ingestResp.Status)
		assert.Empty(t, ingestResp.TaskID)
	})

	t.Run("EmptyModeDefaultsToIncremental", func(t *testing.T) {
		env := setupAPI(t)

		w := doJSON(t, env.router, http.MethodPost, "/api/ingest", map[string]interface{}{})
		require.Equal(t, http.StatusOK, w.Code)

		resp := parseResponse(t, w)
		data, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		var ingestResp model.IngestResponse
		require.NoError(t, json.Unmarshal(data, &ingestResp))
		assert.Equal(t, "incremental", ingestResp.Mode)
	})

	t.Run("InvalidModeRejected", func(t *testing.T) {
		env := setupAPI(t)

		w := doJSON(t, env.router, http.MethodPost, "/api/ingest", map[string]interface{}{"mode": "bogus"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("RunDetailQueryable", func(t *testing.T) {
		env := setupAPI(t)
		_, err := env.store.Save(strings.NewReader("File content."), "doc.txt")
		require.NoError(t, err)

		w := doJSON(t, env.router, http.MethodPost, "/api/ingest", model.IngestRequest{Mode: "incremental"})
		require.Equal(t, http.StatusOK, w.Code)

		resp := parseResponse(t, w)
		data, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		var ingestResp model.IngestResponse
		require.NoError(t, json.Unmarshal(data, &ingestResp))

		w = doJSON(t, env.router, http.MethodGet, "/api/ingest/runs/"+ingestResp.RunID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp = parseResponse(t, w)
		data, err = json.Marshal(resp.Data)
		require.NoError(t, err)
		var run model.RunInfo
		require.NoError(t, json.Unmarshal(data, &run))
		assert.Equal(t, 1, run.FilesTotal)
		assert.Equal(t, 1, run.FilesOK)
		require.Len(t, run.Files, 1)
		assert.Equal(t, "doc.txt", run.Files[0].Source)
	})

	t.Run("MissingRunReturns404", func(t *testing.T) {
		env := setupAPI(t)

		w := doJSON(t, env.router, http.MethodGet, "/api/ingest/runs/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("RunListPaginated", func(t *testing.T) {
		env := setupAPI(t)

		for i := 0; i < 3; i++ {
			w := doJSON(t, env.router, http.MethodPost, "/api/ingest", model.IngestRequest{Mode: "incremental"})
			require.Equal(t, http.StatusOK, w.Code)
		}

		w := doJSON(t, env.router, http.MethodGet, "/api/ingest/runs?page=1&page_size=2", nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := parseResponse(t, w)
		data, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		var list model.RunListResponse
		require.NoError(t, json.Unmarshal(data, &list))
		assert.Equal(t, int64(3), list.Total)
		assert.Len(t, list.Runs, 2)
	})
}

func TestStatsEndpoint(t *testing.T) {
	env := setupAPI(t)
	ingestFile(t, env, "notes.txt", "Content for stats.")

	w := doJSON(t, env.router, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := parseResponse(t, w)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var stats model.StatsResponse
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, int64(1), stats.Documents)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 8, stats.Dimension)
	assert.Equal(t, "stub", stats.EmbeddingModel)
	assert.Equal(t, "stub", stats.LLMModel)
}

func TestHealthEndpoint(t *testing.T) {
	env := setupAPI(t)

	w := doJSON(t, env.router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}
