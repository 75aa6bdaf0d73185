package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PlainTextParser 纯文本解析器
// 整个文件作为单页文档处理
type PlainTextParser struct{}

// NewPlainTextParser 创建一个新的纯文本解析器
func NewPlainTextParser() *PlainTextParser {
	return &PlainTextParser{}
}

// Parse 解析纯文本文件
func (p *PlainTextParser) Parse(filePath string) (*Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open text file: %w", err)
	}
	defer f.Close()

	return p.ParseReader(f, filePath)
}

// ParseReader 从Reader解析纯文本文档
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) (*Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}

	doc := &Document{
		Source:     filepath.Base(filename),
		FileType:   string(PlainText),
		TotalPages: 1,
	}

	text := normalizeText(string(content))
	if text != "" {
		doc.Pages = []Page{{Number: 1, Text: text}}
	}

	return doc, nil
}
