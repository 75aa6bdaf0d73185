package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/fyerfyer/kb-assistant/internal/document"
	"github.com/fyerfyer/kb-assistant/internal/ingest"
	"github.com/fyerfyer/kb-assistant/internal/models"
	"github.com/fyerfyer/kb-assistant/internal/ocr"
	"github.com/fyerfyer/kb-assistant/internal/repository"
	"github.com/fyerfyer/kb-assistant/internal/vectordb"
	"github.com/fyerfyer/kb-assistant/pkg/storage"
)

// IngestService 知识库摄取服务
// 负责扫描文档存储、解析分块并通过写入闸门送入向量库
type IngestService struct {
	storage       storage.Storage                // 文档存储
	splitter      *document.TextSplitter         // 文本分段器
	gate          *ingest.Gate                   // 摄取写入闸门
	vectorDB      vectordb.Repository            // 向量数据库
	docRepo       repository.DocumentRepository  // 文档记录仓储
	runRepo       repository.IngestRunRepository // 运行记录仓储
	ocrClient     ocr.Client                     // OCR客户端，可为nil
	ocrMinTextLen int                            // 触发OCR回退的最小文本长度
	logger        *logrus.Logger                 // 日志记录器
}

// IngestOption 摄取服务配置选项
type IngestOption func(*IngestService)

// WithOCRClient 设置OCR客户端
func WithOCRClient(client ocr.Client) IngestOption {
	return func(s *IngestService) {
		s.ocrClient = client
	}
}

// WithOCRMinTextLen 设置触发OCR回退的最小文本长度
func WithOCRMinTextLen(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.ocrMinTextLen = n
		}
	}
}

// WithIngestLogger 设置日志记录器
func WithIngestLogger(logger *logrus.Logger) IngestOption {
	return func(s *IngestService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewIngestService 创建摄取服务实例
func NewIngestService(
	store storage.Storage,
	splitter *document.TextSplitter,
	gate *ingest.Gate,
	vectorDB vectordb.Repository,
	docRepo repository.DocumentRepository,
	runRepo repository.IngestRunRepository,
	opts ...IngestOption,
) *IngestService {
	service := &IngestService{
		storage:       store,
		splitter:      splitter,
		gate:          gate,
		vectorDB:      vectorDB,
		docRepo:       docRepo,
		runRepo:       runRepo,
		ocrMinTextLen: document.DefaultOCRMinTextLen,
		logger:        logrus.New(),
	}

	for _, opt := range opts {
		opt(service)
	}
	return service
}

// StartRun 创建一条新的摄取运行记录
// 实际执行由RunIngest完成，可同步调用或经任务队列触发
func (s *IngestService) StartRun(ctx context.Context, mode models.IngestMode) (*models.IngestRun, error) {
	if mode != models.ModeIncremental && mode != models.ModeReset {
		return nil, fmt.Errorf("invalid ingest mode: %s", mode)
	}

	run := &models.IngestRun{
		ID:     uuid.NewString(),
		Mode:   mode,
		Status: models.RunStatusRunning,
	}
	if err := s.runRepo.Create(run); err != nil {
		return nil, fmt.Errorf("failed to create ingest run: %w", err)
	}
	return run, nil
}

// Run 同步执行一次完整的摄取运行
func (s *IngestService) Run(ctx context.Context, mode models.IngestMode) (*models.IngestRun, error) {
	run, err := s.StartRun(ctx, mode)
	if err != nil {
		return nil, err
	}

	if err := s.RunIngest(ctx, run.ID, string(mode)); err != nil {
		return nil, err
	}
	return s.runRepo.GetByID(run.ID)
}

// RunIngest 执行指定的摄取运行
// 实现taskqueue.Ingestor接口；单个文件失败不会中止整个运行
func (s *IngestService) RunIngest(ctx context.Context, runID string, mode string) error {
	run, err := s.runRepo.GetByID(runID)
	if err != nil {
		return fmt.Errorf("failed to load ingest run: %w", err)
	}

	if err := s.executeRun(ctx, run); err != nil {
		now := time.Now()
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		run.FinishedAt = &now
		if updateErr := s.runRepo.Update(run); updateErr != nil {
			s.logger.WithError(updateErr).Error("Failed to persist failed ingest run")
		}
		return err
	}
	return nil
}

// executeRun 执行摄取并在运行记录中写入汇总
func (s *IngestService) executeRun(ctx context.Context, run *models.IngestRun) error {
	s.logger.WithFields(logrus.Fields{
		"run_id": run.ID,
		"mode":   run.Mode,
	}).Info("Starting ingest run")

	// 全量重建模式先清空向量库和文档记录
	if run.Mode == models.ModeReset {
		if err := s.vectorDB.Reset(); err != nil {
			return fmt.Errorf("failed to reset vector store: %w", err)
		}
		if err := s.docRepo.DeleteAll(); err != nil {
			return fmt.Errorf("failed to reset document records: %w", err)
		}
		s.logger.Info("Vector store and document records cleared")
	}

	files, err := s.storage.List()
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	var fileResults []models.FileResult
	for _, file := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result := s.processFile(ctx, file)
		fileResults = append(fileResults, result)

		run.FilesTotal++
		run.ChunksAdded += result.ChunksAdded
		run.ChunksSkipped += result.ChunksSkipped
		if result.Status == string(models.DocStatusCompleted) {
			run.FilesOK++
		} else {
			run.FilesFailed++
		}
	}

	now := time.Now()
	run.Status = models.RunStatusCompleted
	run.FinishedAt = &now
	if data, err := json.Marshal(fileResults); err == nil {
		run.Files = datatypes.JSON(data)
	}

	if err := s.runRepo.Update(run); err != nil {
		return fmt.Errorf("failed to persist ingest run summary: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":         run.ID,
		"files_total":    run.FilesTotal,
		"files_ok":       run.FilesOK,
		"files_failed":   run.FilesFailed,
		"chunks_added":   run.ChunksAdded,
		"chunks_skipped": run.ChunksSkipped,
	}).Info("Ingest run finished")
	return nil
}

// processFile 处理单个源文件：解析、分块、分配标识、写入
func (s *IngestService) processFile(ctx context.Context, file storage.FileInfo) models.FileResult {
	fileType := string(document.DetectContentType(file.Name))
	result := models.FileResult{
		Source:   file.Name,
		FileType: fileType,
		Status:   string(models.DocStatusFailed),
	}

	doc, err := s.parseFile(file)
	if err != nil {
		result.Error = err.Error()
		s.recordDocument(file.Name, fileType, result, false)
		s.logger.WithError(err).WithField("source", file.Name).Warn("Failed to parse document, skipping")
		return result
	}

	result.FileType = doc.FileType
	result.Pages = doc.TotalPages

	chunks, usedOCR, err := s.buildChunks(doc)
	if err != nil {
		result.Error = err.Error()
		s.recordDocument(file.Name, doc.FileType, result, usedOCR)
		s.logger.WithError(err).WithField("source", file.Name).Warn("Failed to split document, skipping")
		return result
	}

	upsert, err := s.gate.Upsert(ctx, chunks)
	result.ChunksAdded = upsert.Added
	result.ChunksSkipped = upsert.Skipped
	if err != nil {
		result.Error = err.Error()
		s.recordDocument(file.Name, doc.FileType, result, usedOCR)
		s.logger.WithError(err).WithField("source", file.Name).Warn("Failed to upsert chunks")
		return result
	}

	result.Status = string(models.DocStatusCompleted)
	s.recordDocument(file.Name, doc.FileType, result, usedOCR)
	return result
}

// parseFile 打开并解析一个源文件
func (s *IngestService) parseFile(file storage.FileInfo) (*document.Document, error) {
	parser, err := s.parserFor(file.Name)
	if err != nil {
		return nil, err
	}

	reader, err := s.storage.Open(file.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer reader.Close()

	return parser.ParseReader(reader, file.Name)
}

// parserFor 按文件类型创建解析器，PDF解析器携带OCR配置
func (s *IngestService) parserFor(name string) (document.Parser, error) {
	if document.DetectContentType(name) == document.PDF {
		opts := []document.PDFOption{
			document.WithOCRMinTextLen(s.ocrMinTextLen),
			document.WithPDFLogger(s.logger),
		}
		if s.ocrClient != nil {
			opts = append(opts, document.WithOCRClient(s.ocrClient))
		}
		return document.NewPDFParser(opts...), nil
	}
	return document.ParserFactory(name)
}

// buildChunks 将解析后的文档分块并分配确定性标识符
func (s *IngestService) buildChunks(doc *document.Document) ([]ingest.ChunkRef, bool, error) {
	var chunks []ingest.ChunkRef
	usedOCR := false

	for _, page := range doc.Pages {
		if page.UsedOCR {
			usedOCR = true
		}

		pageChunks, err := s.splitter.Split(page)
		if err != nil {
			return nil, usedOCR, fmt.Errorf("failed to split page %d: %w", page.Number, err)
		}

		for _, chunk := range pageChunks {
			chunks = append(chunks, ingest.ChunkRef{
				Text:       chunk.Text,
				Source:     doc.Source,
				FileType:   doc.FileType,
				Page:       page.Number,
				TotalPages: doc.TotalPages,
				HasTable:   page.HasTable,
				UsedOCR:    page.UsedOCR,
			})
		}
	}

	ingest.AssignIDs(chunks)
	return chunks, usedOCR, nil
}

// recordDocument 持久化单个文件的摄取结果
func (s *IngestService) recordDocument(source, fileType string, result models.FileResult, usedOCR bool) {
	doc := &models.Document{
		Source:        source,
		FileType:      fileType,
		Status:        models.DocumentStatus(result.Status),
		Pages:         result.Pages,
		ChunksAdded:   result.ChunksAdded,
		ChunksSkipped: result.ChunksSkipped,
		UsedOCR:       usedOCR,
		Error:         result.Error,
	}
	if result.Status == string(models.DocStatusCompleted) {
		now := time.Now()
		doc.IngestedAt = &now
	}

	if err := s.docRepo.Upsert(doc); err != nil {
		s.logger.WithError(err).WithField("source", source).Error("Failed to persist document record")
	}
}

// GetRun 根据运行ID获取摄取运行记录
func (s *IngestService) GetRun(id string) (*models.IngestRun, error) {
	return s.runRepo.GetByID(id)
}

// ListRuns 按开始时间倒序列出摄取运行记录
func (s *IngestService) ListRuns(offset, limit int) ([]*models.IngestRun, int64, error) {
	return s.runRepo.List(offset, limit)
}

// Stats 知识库统计信息
type Stats struct {
	Documents   int64 `json:"documents"`    // 已摄取的源文件数
	Chunks      int   `json:"chunks"`       // 向量库中的分块数
	Dimension   int   `json:"dimension"`    // 向量维数
	FailedFiles int64 `json:"failed_files"` // 处理失败的文件数
}

// GetStats 返回知识库当前统计
func (s *IngestService) GetStats(ctx context.Context) (*Stats, error) {
	chunkCount, err := s.vectorDB.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	docCount, err := s.docRepo.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	_, failedCount, err := s.docRepo.List(0, 1, models.DocStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to count failed documents: %w", err)
	}

	return &Stats{
		Documents:   docCount,
		Chunks:      chunkCount,
		Dimension:   s.vectorDB.GetDimension(),
		FailedFiles: failedCount,
	}, nil
}
