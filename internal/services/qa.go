package services

import (
	"context"
	"fmt"
	"time"

	"github.com/fyerfyer/kb-assistant/internal/cache"
	"github.com/fyerfyer/kb-assistant/internal/embedding"
	"github.com/fyerfyer/kb-assistant/internal/llm"
	"github.com/fyerfyer/kb-assistant/internal/vectordb"
)

// NoAnswerMessage 未检索到相关内容时的固定回答
const NoAnswerMessage = "抱歉，我没有找到相关信息可以回答您的问题。"

// QAService 问答服务
// 负责协调向量检索和大模型生成答案
type QAService struct {
	embedder    embedding.Client    // 嵌入模型客户端
	vectorDB    vectordb.Repository // 向量数据库
	llm         llm.Client          // 大模型客户端
	rag         *llm.RAGService     // RAG服务
	cache       cache.Cache         // 缓存
	cacheTTL    time.Duration       // 缓存有效期
	searchLimit int                 // 默认检索结果数量
	minScore    float32             // 最低相似度分数
}

// QAOption 问答服务配置选项
type QAOption func(*QAService)

// NewQAService 创建问答服务实例
func NewQAService(
	embedder embedding.Client,
	vectorDB vectordb.Repository,
	llmClient llm.Client,
	rag *llm.RAGService,
	qaCache cache.Cache,
	opts ...QAOption,
) *QAService {
	service := &QAService{
		embedder:    embedder,
		vectorDB:    vectorDB,
		llm:         llmClient,
		rag:         rag,
		cache:       qaCache,
		cacheTTL:    24 * time.Hour, // 默认缓存24小时
		searchLimit: 5,              // 默认检索5个相关分块
		minScore:    0.0,
	}

	for _, opt := range opts {
		opt(service)
	}
	return service
}

// WithCacheTTL 设置缓存时间
func WithCacheTTL(ttl time.Duration) QAOption {
	return func(s *QAService) {
		s.cacheTTL = ttl
	}
}

// WithSearchLimit 设置默认检索结果数量
func WithSearchLimit(limit int) QAOption {
	return func(s *QAService) {
		if limit > 0 {
			s.searchLimit = limit
		}
	}
}

// WithMinScore 设置最低相似度分数
func WithMinScore(score float32) QAOption {
	return func(s *QAService) {
		s.minScore = score
	}
}

// QAResult 一次问答的结果
type QAResult struct {
	Answer  string                  // 回答内容
	Sources []vectordb.SearchResult // 命中的分块及得分
}

// Answer 回答问题
// k指定检索的分块数量，传0使用默认值
func (s *QAService) Answer(ctx context.Context, question string, k int) (*QAResult, error) {
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}
	if k <= 0 {
		k = s.searchLimit
	}

	// 1. 尝试从缓存获取
	cacheKey := cache.GenerateCacheKey("qa", fmt.Sprintf("%d", k), question)
	var cached QAResult
	if found, err := cache.GetObject(ctx, s.cache, cacheKey, &cached); err == nil && found {
		return &cached, nil
	}

	// 2. 将问题转换为向量
	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	// 3. 检索相关分块
	filter := vectordb.SearchFilter{
		MinScore:   s.minScore,
		MaxResults: k,
	}
	results, err := s.vectorDB.Search(vector, filter)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	// 没有命中任何分块时返回固定回答，不调用大模型
	if len(results) == 0 {
		result := &QAResult{Answer: NoAnswerMessage}
		s.cacheResult(ctx, cacheKey, result)
		return result, nil
	}

	// 4. 组装上下文并生成回答
	contexts := make([]string, len(results))
	for i, hit := range results {
		contexts[i] = hit.Record.Text
	}

	ragResponse, err := s.rag.Answer(ctx, question, contexts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	result := &QAResult{
		Answer:  ragResponse.Answer,
		Sources: results,
	}

	// 5. 缓存结果
	s.cacheResult(ctx, cacheKey, result)
	return result, nil
}

// AnswerSimple 回答问题，只返回答案文本
func (s *QAService) AnswerSimple(ctx context.Context, question string, k int) (string, error) {
	result, err := s.Answer(ctx, question, k)
	if err != nil {
		return "", err
	}
	return result.Answer, nil
}

// cacheResult 缓存问答结果，缓存失败不影响主流程
func (s *QAService) cacheResult(ctx context.Context, key string, result *QAResult) {
	_ = cache.SetObject(ctx, s.cache, key, result, s.cacheTTL)
}

// ClearCache 清除问答缓存
func (s *QAService) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// ModelNames 返回当前使用的嵌入模型和对话模型名称
func (s *QAService) ModelNames() (embedModel, llmModel string) {
	return s.embedder.Name(), s.llm.Name()
}
