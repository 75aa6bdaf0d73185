package model

import (
	"encoding/json"
	"time"

	"github.com/fyerfyer/kb-assistant/internal/models"
	"github.com/fyerfyer/kb-assistant/internal/vectordb"
)

// 来源内容预览的最大长度
const sourcePreviewLen = 200

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// Source 问答引用的分块来源
type Source struct {
	ID      string  `json:"id"`      // 分块标识符
	Content string  `json:"content"` // 分块内容预览
	Score   float32 `json:"score"`   // 相似度得分
	Page    int     `json:"page"`    // 所在页号
	File    string  `json:"file"`    // 源文件名
}

// QueryResponse 问答响应
type QueryResponse struct {
	Question string   `json:"question"` // 用户问题
	Answer   string   `json:"answer"`   // 生成的回答
	Sources  []Source `json:"sources"`  // 来源信息
}

// SimpleQueryResponse 简化的问答响应，仅包含回答文本
type SimpleQueryResponse struct {
	Answer string `json:"answer"` // 生成的回答
}

// ConvertSources 将检索结果转换为来源信息
// 分块内容截断为预览长度
func ConvertSources(results []vectordb.SearchResult) []Source {
	sources := make([]Source, len(results))
	for i, hit := range results {
		content := hit.Record.Text
		if len([]rune(content)) > sourcePreviewLen {
			content = string([]rune(content)[:sourcePreviewLen]) + "..."
		}

		source := Source{
			ID:      hit.Record.ID,
			Content: content,
			Score:   hit.Score,
		}
		if page, ok := hit.Record.Metadata[vectordb.MetaPage].(int); ok {
			source.Page = page
		} else if page, ok := hit.Record.Metadata[vectordb.MetaPage].(float64); ok {
			source.Page = int(page)
		}
		if file, ok := hit.Record.Metadata[vectordb.MetaSource].(string); ok {
			source.File = file
		}
		sources[i] = source
	}
	return sources
}

// StatsResponse 知识库统计响应
type StatsResponse struct {
	Documents      int64  `json:"documents"`       // 已摄取的源文件数
	Chunks         int    `json:"chunks"`          // 向量库中的分块数
	Dimension      int    `json:"dimension"`       // 向量维数
	FailedFiles    int64  `json:"failed_files"`    // 处理失败的文件数
	EmbeddingModel string `json:"embedding_model"` // 嵌入模型名称
	LLMModel       string `json:"llm_model"`       // 对话模型名称
}

// IngestResponse 摄取触发响应
type IngestResponse struct {
	RunID  string `json:"run_id"`            // 运行ID
	Mode   string `json:"mode"`              // 摄取模式
	Status string `json:"status"`            // 运行状态
	TaskID string `json:"task_id,omitempty"` // 异步任务ID，同步执行时为空
}

// RunInfo 摄取运行详情
type RunInfo struct {
	ID            string              `json:"id"`                  // 运行ID
	Mode          string              `json:"mode"`                // 摄取模式
	Status        string              `json:"status"`              // 运行状态
	FilesTotal    int                 `json:"files_total"`         // 扫描的文件总数
	FilesOK       int                 `json:"files_ok"`            // 处理成功的文件数
	FilesFailed   int                 `json:"files_failed"`        // 处理失败的文件数
	ChunksAdded   int                 `json:"chunks_added"`        // 新增分块数
	ChunksSkipped int                 `json:"chunks_skipped"`      // 跳过的分块数
	Error         string              `json:"error,omitempty"`     // 错误信息
	Files         []models.FileResult `json:"files,omitempty"`     // 逐文件结果
	StartedAt     time.Time           `json:"started_at"`          // 开始时间
	FinishedAt    *time.Time          `json:"finished_at"`         // 结束时间
}

// ConvertRun 将摄取运行记录转换为响应详情
func ConvertRun(run *models.IngestRun) RunInfo {
	info := RunInfo{
		ID:            run.ID,
		Mode:          string(run.Mode),
		Status:        string(run.Status),
		FilesTotal:    run.FilesTotal,
		FilesOK:       run.FilesOK,
		FilesFailed:   run.FilesFailed,
		ChunksAdded:   run.ChunksAdded,
		ChunksSkipped: run.ChunksSkipped,
		Error:         run.Error,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
	}
	if len(run.Files) > 0 {
		var files []models.FileResult
		if err := json.Unmarshal(run.Files, &files); err == nil {
			info.Files = files
		}
	}
	return info
}

// RunListResponse 摄取运行列表响应
type RunListResponse struct {
	Total    int64     `json:"total"`     // 总记录数
	Page     int       `json:"page"`      // 当前页码
	PageSize int       `json:"page_size"` // 每页大小
	Runs     []RunInfo `json:"runs"`      // 运行列表
}
