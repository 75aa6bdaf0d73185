package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// DOCXParser Word文档解析器
// 按文档正文元素的原始顺序提取段落和表格：
// 连续段落累积为一个文本节，每个表格自成一节并序列化为Markdown表格。
// 节序号作为页号使用，DOCX没有OCR回退路径
type DOCXParser struct {
	logger *logrus.Logger
}

// NewDOCXParser 创建一个新的DOCX解析器
func NewDOCXParser() *DOCXParser {
	return &DOCXParser{logger: logrus.New()}
}

// Parse 解析DOCX文件
func (p *DOCXParser) Parse(filePath string) (*Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx file: %w", err)
	}
	defer f.Close()

	return p.ParseReader(f, filePath)
}

// ParseReader 从Reader解析DOCX文档
func (p *DOCXParser) ParseReader(r io.Reader, filename string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read docx data: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx archive: %w", err)
	}

	var docXML io.ReadCloser
	for _, zf := range zr.File {
		if zf.Name == "word/document.xml" {
			docXML, err = zf.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open word/document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("word/document.xml not found in archive")
	}
	defer docXML.Close()

	sections, err := p.extractSections(docXML)
	if err != nil {
		return nil, fmt.Errorf("failed to extract docx content: %w", err)
	}

	doc := &Document{
		Source:     filepath.Base(filename),
		FileType:   string(DOCX),
		TotalPages: len(sections),
		Pages:      make([]Page, 0, len(sections)),
	}

	for i, sec := range sections {
		doc.Pages = append(doc.Pages, Page{
			Number:   i + 1,
			Text:     sec.text,
			Tables:   sec.tables,
			HasTable: sec.tables > 0,
		})
	}

	return doc, nil
}

// docxSection 正文中的一个节：一段累积文本或一个表格
type docxSection struct {
	text   string
	tables int
}

// extractSections 按正文元素顺序提取段落和表格
func (p *DOCXParser) extractSections(r io.Reader) ([]docxSection, error) {
	decoder := xml.NewDecoder(r)

	var sections []docxSection
	var paragraphs []string
	tableCount := 0

	// 累积的段落文本在遇到表格或文档结尾时落为一个节
	flushText := func() {
		if len(paragraphs) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
		paragraphs = nil
		if text != "" {
			sections = append(sections, docxSection{text: text})
		}
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed document xml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "p":
			text, err := p.collectParagraph(decoder, start)
			if err != nil {
				return nil, err
			}
			if text != "" {
				paragraphs = append(paragraphs, text)
			}
		case "tbl":
			rows, err := p.collectTable(decoder, start)
			if err != nil {
				// 单个损坏的表格不终止整个文档
				p.logger.WithError(err).Warn("Failed to extract docx table, skipping")
				continue
			}

			flushText()

			if md := tableToMarkdown(rows); md != "" {
				tableCount++
				sections = append(sections, docxSection{
					text:   fmt.Sprintf("**Table %d:**\n%s", tableCount, md),
					tables: 1,
				})
			}
		}
	}

	flushText()
	return sections, nil
}

// collectParagraph 收集一个段落内所有文本run的内容
func (p *DOCXParser) collectParagraph(decoder *xml.Decoder, start xml.StartElement) (string, error) {
	var b strings.Builder
	depth := 1

	for depth > 0 {
		tok, err := decoder.Token()
		if err != nil {
			return "", fmt.Errorf("unexpected end of paragraph: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "t":
				// 文本run
				var text string
				if err := decoder.DecodeElement(&text, &t); err != nil {
					return "", err
				}
				depth--
				b.WriteString(text)
			case "br", "cr":
				b.WriteString("\n")
			case "tab":
				b.WriteString("\t")
			}
		case xml.EndElement:
			depth--
		}
	}

	return strings.TrimSpace(b.String()), nil
}

// collectTable 收集表格的行列文本
// 嵌套表格的内容并入所在单元格
func (p *DOCXParser) collectTable(decoder *xml.Decoder, start xml.StartElement) ([][]string, error) {
	var rows [][]string
	var currentRow []string
	var cell strings.Builder
	inCell := 0
	depth := 1

	for depth > 0 {
		tok, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("unexpected end of table: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "tr":
				if depth == 2 {
					currentRow = nil
				}
			case "tc":
				inCell++
				if inCell == 1 {
					cell.Reset()
				}
			case "t":
				var text string
				if err := decoder.DecodeElement(&text, &t); err != nil {
					return nil, err
				}
				depth--
				if inCell > 0 {
					cell.WriteString(text)
				}
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "tc":
				inCell--
				if inCell == 0 {
					currentRow = append(currentRow, strings.TrimSpace(cell.String()))
				}
			case "tr":
				if depth == 1 && len(currentRow) > 0 {
					rows = append(rows, currentRow)
					currentRow = nil
				}
			}
		}
	}

	return rows, nil
}
