package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/kb-assistant/api"
	"github.com/fyerfyer/kb-assistant/api/handler"
	"github.com/fyerfyer/kb-assistant/api/middleware"
	kbconfig "github.com/fyerfyer/kb-assistant/config"
	"github.com/fyerfyer/kb-assistant/internal/cache"
	"github.com/fyerfyer/kb-assistant/internal/database"
	"github.com/fyerfyer/kb-assistant/internal/document"
	"github.com/fyerfyer/kb-assistant/internal/embedding"
	"github.com/fyerfyer/kb-assistant/internal/ingest"
	"github.com/fyerfyer/kb-assistant/internal/llm"
	"github.com/fyerfyer/kb-assistant/internal/ocr"
	"github.com/fyerfyer/kb-assistant/internal/repository"
	"github.com/fyerfyer/kb-assistant/internal/services"
	"github.com/fyerfyer/kb-assistant/internal/vectordb"
	"github.com/fyerfyer/kb-assistant/pkg/storage"
	"github.com/fyerfyer/kb-assistant/pkg/taskqueue"
)

func main() {
	// 加载.env文件（如果存在）
	_ = godotenv.Load()

	configFile := flag.String("config", "", "Path to config file")
	mode := flag.String("mode", "release", "Run mode (debug/release)")
	logLevel := flag.String("log-level", "info", "Log level (debug/info/warn/error)")
	logFile := flag.String("log-file", "", "Log file path with rotation, empty for stdout")
	flag.Parse()

	cfg, err := kbconfig.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	gin.SetMode(*mode)

	logger := setupLogger(*logLevel, *logFile)
	logger.Info("Starting knowledge base assistant...")

	// 初始化数据库
	if err := setupDatabase(cfg, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化文档存储
	docStorage, err := setupStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 初始化向量数据库
	vectorDB, err := setupVectorDB(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize vector database: %v", err)
	}
	defer vectorDB.Close()

	// 初始化嵌入客户端
	embeddingClient, err := setupEmbedding(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize embedding client: %v", err)
	}

	// 初始化大语言模型客户端
	llmClient, err := setupLLM(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM client: %v", err)
	}

	// 初始化缓存
	cacheService, err := setupCache(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	// 初始化文本分段器
	splitter, err := document.NewTextSplitter(document.SplitterConfig{
		Text: document.ChunkPolicy{
			ChunkSize:    cfg.Document.ChunkSize,
			ChunkOverlap: cfg.Document.ChunkOverlap,
		},
		Table: document.ChunkPolicy{
			ChunkSize:    cfg.Document.TableChunkSize,
			ChunkOverlap: cfg.Document.TableChunkOverlap,
		},
	})
	if err != nil {
		logger.Fatalf("Failed to create text splitter: %v", err)
	}

	// 初始化摄取写入闸门
	gate, err := ingest.NewGate(vectorDB, embeddingClient,
		ingest.WithBatchSize(cfg.Embed.BatchSize),
		ingest.WithWorkers(cfg.Embed.Workers),
		ingest.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("Failed to create ingest gate: %v", err)
	}

	// 初始化摄取服务
	ingestOptions := []services.IngestOption{
		services.WithIngestLogger(logger),
		services.WithOCRMinTextLen(cfg.OCR.MinTextLen),
	}
	if cfg.OCR.Enable {
		ocrClient, err := ocr.NewHTTPClient(
			ocr.WithEndpoint(cfg.OCR.Endpoint),
			ocr.WithLanguage(cfg.OCR.Language),
		)
		if err != nil {
			logger.Fatalf("Failed to create OCR client: %v", err)
		}
		ingestOptions = append(ingestOptions, services.WithOCRClient(ocrClient))
		logger.Info("OCR fallback enabled for scanned PDF pages")
	}

	ingestService := services.NewIngestService(
		docStorage,
		splitter,
		gate,
		vectorDB,
		repository.NewDocumentRepository(),
		repository.NewIngestRunRepository(),
		ingestOptions...,
	)

	// 初始化RAG和问答服务
	ragService := llm.NewRAG(llmClient,
		llm.WithRAGMaxTokens(cfg.LLM.MaxTokens),
		llm.WithRAGTemperature(cfg.LLM.Temperature),
	)

	qaService := services.NewQAService(
		embeddingClient,
		vectorDB,
		llmClient,
		ragService,
		cacheService,
		services.WithSearchLimit(cfg.Search.Limit),
		services.WithMinScore(cfg.Search.MinScore),
	)

	// 初始化任务队列和工作者（如果启用）
	var queue taskqueue.Queue
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()

		worker, err := setupWorker(queue, cfg, ingestService, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task worker: %v", err)
		}
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()
		logger.Info("Task queue and worker started")
	}

	// 初始化API处理器和路由
	qaHandler := handler.NewQAHandler(qaService, ingestService)
	ingestHandler := handler.NewIngestHandler(ingestService, queue)
	router := api.SetupRouter(qaHandler, ingestHandler)

	// 启动HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger 设置日志系统
func setupLogger(level, file string) *logrus.Logger {
	logger := middleware.GetLogger()

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if file != "" {
		middleware.SetLogFile(file)
	}

	return logger
}

// setupDatabase 设置数据库
func setupDatabase(cfg *kbconfig.Config, logger *logrus.Logger) error {
	dbConfig := &database.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
	}
	return database.Setup(dbConfig, logger)
}

// setupStorage 设置文档存储
func setupStorage(cfg *kbconfig.Config) (storage.Storage, error) {
	if cfg.Storage.Type == "minio" {
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
	}

	if err := os.MkdirAll(cfg.Storage.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}
	return storage.NewLocalStorage(storage.LocalConfig{
		Path: cfg.Storage.Path,
	})
}

// setupVectorDB 设置向量数据库
// FAISS初始化失败时回退到内存实现
func setupVectorDB(cfg *kbconfig.Config, logger *logrus.Logger) (vectordb.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.VectorDB.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create vector database directory: %v", err)
	}

	repo, err := vectordb.NewRepository(vectordb.Config{
		Type:              cfg.VectorDB.Type,
		Path:              cfg.VectorDB.Path,
		Dimension:         cfg.VectorDB.Dim,
		DistanceType:      vectordb.DistanceType(cfg.VectorDB.Distance),
		CreateIfNotExists: true,
	})
	if err != nil {
		logger.Warnf("Failed to initialize %s vector database: %v", cfg.VectorDB.Type, err)
		logger.Warn("Falling back to in-memory vector database")

		return vectordb.NewRepository(vectordb.Config{
			Type:         "memory",
			Dimension:    cfg.VectorDB.Dim,
			DistanceType: vectordb.DistanceType(cfg.VectorDB.Distance),
		})
	}
	return repo, nil
}

// setupEmbedding 设置嵌入模型客户端
func setupEmbedding(cfg *kbconfig.Config) (embedding.Client, error) {
	return embedding.NewClient(cfg.Embed.Provider,
		embedding.WithBaseURL(cfg.Embed.Endpoint),
		embedding.WithAPIKey(cfg.Embed.APIKey),
		embedding.WithModel(cfg.Embed.Model),
		embedding.WithDimensions(cfg.Embed.Dimensions),
		embedding.WithBatchSize(cfg.Embed.BatchSize),
	)
}

// setupLLM 设置大语言模型客户端
func setupLLM(cfg *kbconfig.Config) (llm.Client, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required, set llm.api_key or LLM_API_KEY")
	}

	return llm.NewClient(cfg.LLM.Provider,
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithBaseURL(cfg.LLM.Endpoint),
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
	)
}

// setupCache 设置缓存服务
func setupCache(cfg *kbconfig.Config) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:            cfg.Cache.Type,
		DefaultTTL:      time.Duration(cfg.Cache.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	}

	if cfg.Cache.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Cache.Address
		cacheConfig.RedisPassword = cfg.Cache.Password
		cacheConfig.RedisDB = cfg.Cache.DB
	}

	return cache.NewCache(cacheConfig)
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg *kbconfig.Config, logger *logrus.Logger) (taskqueue.Queue, error) {
	queueConfig := &taskqueue.Config{
		RedisAddr:     cfg.Queue.RedisAddr,
		RedisPassword: cfg.Queue.RedisPassword,
		RedisDB:       cfg.Queue.RedisDB,
		Concurrency:   cfg.Queue.Concurrency,
		RetryLimit:    cfg.Queue.RetryLimit,
		RetryDelay:    time.Duration(cfg.Queue.RetryDelay) * time.Second,
	}

	logger.WithFields(logrus.Fields{
		"type":        cfg.Queue.Type,
		"redis_addr":  cfg.Queue.RedisAddr,
		"concurrency": cfg.Queue.Concurrency,
	}).Info("Setting up task queue")

	return taskqueue.NewQueue(cfg.Queue.Type, queueConfig)
}

// setupWorker 设置任务队列工作者并注册摄取处理器
func setupWorker(queue taskqueue.Queue, cfg *kbconfig.Config, ingestService *services.IngestService, logger *logrus.Logger) (taskqueue.Worker, error) {
	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("unsupported queue implementation for worker")
	}

	worker := taskqueue.NewRedisWorker(redisQueue, &taskqueue.Config{
		RedisAddr:     cfg.Queue.RedisAddr,
		RedisPassword: cfg.Queue.RedisPassword,
		RedisDB:       cfg.Queue.RedisDB,
		Concurrency:   cfg.Queue.Concurrency,
		RetryLimit:    cfg.Queue.RetryLimit,
		RetryDelay:    time.Duration(cfg.Queue.RetryDelay) * time.Second,
	})
	worker.RegisterHandler(taskqueue.TaskIngestRun, taskqueue.NewIngestHandler(ingestService, logger))
	return worker, nil
}
