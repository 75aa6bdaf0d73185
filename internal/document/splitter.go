package document

import (
	"fmt"
	"strings"
	"unicode"
)

// ChunkPolicy 单个分块策略
type ChunkPolicy struct {
	ChunkSize    int // 分块大小（按字符数）
	ChunkOverlap int // 相邻分块的重叠大小（字符数）
}

// SplitterConfig 分段器配置
// 普通页面和含表格页面使用不同的窗口大小：
// 表格页面使用更大的窗口，降低表格行被切断的概率
type SplitterConfig struct {
	Text  ChunkPolicy // 普通文本页面的分块策略
	Table ChunkPolicy // 含表格页面的分块策略
}

// DefaultSplitterConfig 返回默认分段器配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		Text:  ChunkPolicy{ChunkSize: 1000, ChunkOverlap: 200},
		Table: ChunkPolicy{ChunkSize: 2000, ChunkOverlap: 100},
	}
}

// Validate 检查配置是否合法
func (c SplitterConfig) Validate() error {
	for _, p := range []ChunkPolicy{c.Text, c.Table} {
		if p.ChunkSize <= 0 {
			return fmt.Errorf("chunk size must be positive, got %d", p.ChunkSize)
		}
		if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
			return fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", p.ChunkOverlap)
		}
	}
	return nil
}

// TextSplitter 实现文本分段器接口
type TextSplitter struct {
	config SplitterConfig
}

// NewTextSplitter 创建新的文本分段器
func NewTextSplitter(config SplitterConfig) (*TextSplitter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TextSplitter{config: config}, nil
}

// MustSplitter 创建使用默认配置的分段器
func MustSplitter() *TextSplitter {
	s, _ := NewTextSplitter(DefaultSplitterConfig())
	return s
}

// PolicyFor 返回页面适用的分块策略
func (s *TextSplitter) PolicyFor(page Page) ChunkPolicy {
	if page.HasTable {
		return s.config.Table
	}
	return s.config.Text
}

// Split 将页面文本分割成有序分块
// 空页面返回空切片而不是错误；分块顺序与页面文本顺序一致，
// 页内索引后续会编码进分块标识，因此必须在多次运行间保持确定
func (s *TextSplitter) Split(page Page) ([]Chunk, error) {
	text := normalizeText(page.Text)
	if text == "" {
		return []Chunk{}, nil
	}

	policy := s.PolicyFor(page)
	pieces := splitByWindow(text, policy.ChunkSize, policy.ChunkOverlap)

	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:  piece,
			Index: len(chunks),
		})
	}

	return chunks, nil
}

// normalizeText 规范化换行符并修剪首尾空白
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}

// splitByWindow 按固定窗口大小和重叠分割文本
// 在窗口边界处向前回退到空白字符，避免单词被截断
// 下一个窗口从实际断点回退overlap开始：断点回退多远都不会丢字，
// 分块拼起来必须覆盖整个页面文本
func splitByWindow(text string, size int, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// 尝试在空白处断开
		cut := end
		for cut > start && !unicode.IsSpace(runes[cut]) {
			cut--
		}
		// 找不到合适的空白就在原位置截断
		if cut <= start {
			cut = end
		}

		chunks = append(chunks, string(runes[start:cut]))

		// 分块太短不足以承担重叠时直接从断点继续，保证前进
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	return chunks
}
