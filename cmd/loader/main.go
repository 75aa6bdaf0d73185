package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	kbconfig "github.com/fyerfyer/kb-assistant/config"
	"github.com/fyerfyer/kb-assistant/internal/database"
	"github.com/fyerfyer/kb-assistant/internal/document"
	"github.com/fyerfyer/kb-assistant/internal/embedding"
	"github.com/fyerfyer/kb-assistant/internal/ingest"
	"github.com/fyerfyer/kb-assistant/internal/models"
	"github.com/fyerfyer/kb-assistant/internal/ocr"
	"github.com/fyerfyer/kb-assistant/internal/repository"
	"github.com/fyerfyer/kb-assistant/internal/services"
	"github.com/fyerfyer/kb-assistant/internal/vectordb"
	"github.com/fyerfyer/kb-assistant/pkg/storage"
)

// loader 从知识库目录同步加载文档到向量库
// 与HTTP服务共用同一套配置，适合在命令行批量摄取
func main() {
	_ = godotenv.Load()

	configFile := flag.String("config", "", "Path to config file")
	dataDir := flag.String("data", "", "Knowledge base directory, overrides storage.path")
	reset := flag.Bool("reset", false, "Clear the vector store and re-ingest everything")
	logLevel := flag.String("log-level", "info", "Log level (debug/info/warn/error)")
	flag.Parse()

	cfg, err := kbconfig.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Storage.Type = "local"
		cfg.Storage.Path = *dataDir
	}

	logger := logrus.New()
	if parsed, err := logrus.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(parsed)
	}

	if err := database.Setup(&database.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
	}, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	docStorage, err := setupStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	vectorDB, err := setupVectorDB(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize vector database: %v", err)
	}
	defer vectorDB.Close()

	embeddingClient, err := embedding.NewClient(cfg.Embed.Provider,
		embedding.WithBaseURL(cfg.Embed.Endpoint),
		embedding.WithAPIKey(cfg.Embed.APIKey),
		embedding.WithModel(cfg.Embed.Model),
		embedding.WithDimensions(cfg.Embed.Dimensions),
		embedding.WithBatchSize(cfg.Embed.BatchSize),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize embedding client: %v", err)
	}

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

	gate, err := ingest.NewGate(vectorDB, embeddingClient,
		ingest.WithBatchSize(cfg.Embed.BatchSize),
		ingest.WithWorkers(cfg.Embed.Workers),
		ingest.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("Failed to create ingest gate: %v", err)
	}

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

	mode := models.ModeIncremental
	if *reset {
		mode = models.ModeReset
	}

	run, err := ingestService.Run(context.Background(), mode)
	if err != nil {
		logger.Fatalf("Ingest run failed: %v", err)
	}

	printSummary(run)
	if run.FilesFailed > 0 {
		os.Exit(1)
	}
}

// printSummary 输出摄取运行的汇总结果
func printSummary(run *models.IngestRun) {
	fmt.Printf("Ingest run %s finished (%s mode)\n", run.ID, run.Mode)
	fmt.Printf("  files:   %d total, %d ok, %d failed\n", run.FilesTotal, run.FilesOK, run.FilesFailed)
	fmt.Printf("  chunks:  %d added, %d skipped\n", run.ChunksAdded, run.ChunksSkipped)

	if len(run.Files) > 0 {
		var files []models.FileResult
		if err := json.Unmarshal(run.Files, &files); err == nil {
			for _, f := range files {
				if f.Error != "" {
					fmt.Printf("  [failed] %s: %s\n", f.Source, f.Error)
				} else {
					fmt.Printf("  [ok]     %s: %d pages, %d added, %d skipped\n",
						f.Source, f.Pages, f.ChunksAdded, f.ChunksSkipped)
				}
			}
		}
	}
}

// setupStorage 按配置创建文档存储
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

// setupVectorDB 按配置创建向量数据库
func setupVectorDB(cfg *kbconfig.Config) (vectordb.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.VectorDB.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create vector database directory: %v", err)
	}

	return vectordb.NewRepository(vectordb.Config{
		Type:              cfg.VectorDB.Type,
		Path:              cfg.VectorDB.Path,
		Dimension:         cfg.VectorDB.Dim,
		DistanceType:      vectordb.DistanceType(cfg.VectorDB.Distance),
		CreateIfNotExists: true,
	})
}
