package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// Parser 文档解析器接口
// 负责将不同格式的文档解析为按页组织的纯文本
type Parser interface {
	// Parse 解析文档，返回按页组织的文档结构
	Parse(filePath string) (*Document, error)

	// ParseReader 从Reader解析文档
	// filename用于确定文档类型和来源标识
	ParseReader(r io.Reader, filename string) (*Document, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// DOCX Word文档类型
	DOCX ContentType = "docx"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ErrUnsupportedType 不支持的文档类型错误
var ErrUnsupportedType = errors.New("unsupported document type")

// ParserFactory 解析器工厂函数，根据文件类型创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	contentType := DetectContentType(filePath)

	switch contentType {
	case PDF:
		return NewPDFParser(), nil
	case DOCX:
		return NewDOCXParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, ErrUnsupportedType
	}
}

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(filePath string) ContentType {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".pdf":
		return PDF
	case ".docx":
		return DOCX
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// Page 文档中的一页（或一节）
// DOCX等没有页概念的格式使用节序号作为页号
type Page struct {
	Number   int    // 页号
	Text     string // 页面纯文本内容（表格已序列化为Markdown表格）
	Tables   int    // 页面中提取到的表格数量
	HasTable bool   // 是否包含表格
	UsedOCR  bool   // 文本是否通过OCR提取
}

// Document 解析后的文档结构
type Document struct {
	Source     string // 源文件名
	FileType   string // 文件类型：pdf、docx、markdown、plaintext
	TotalPages int    // 总页数（或总节数）
	Pages      []Page // 按原始顺序排列的页面
}

// Chunk 从页面文本切出的一个分块
type Chunk struct {
	Text  string // 分块文本内容
	Index int    // 页内分块索引（从0开始）
}

// Splitter 文本分段器接口
// 负责将页面文本分割成适合向量化的小段
type Splitter interface {
	// Split 将页面分割成分块，空页面返回空切片
	Split(page Page) ([]Chunk, error)
}
