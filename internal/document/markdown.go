package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown文档解析器
// 渲染为纯文本后作为单页文档处理，管道表格原样保留
type MarkdownParser struct{}

// NewMarkdownParser 创建一个新的Markdown解析器
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件
func (p *MarkdownParser) Parse(filePath string) (*Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open markdown file: %w", err)
	}
	defer f.Close()

	return p.ParseReader(f, filePath)
}

// ParseReader 从Reader解析Markdown文档
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown data: %w", err)
	}

	ext := parser.CommonExtensions | parser.Tables
	md := parser.NewWithExtensions(ext)
	root := md.Parse(data)

	text := strings.TrimSpace(renderPlainText(root))
	tables := countTables(root)

	doc := &Document{
		Source:     filepath.Base(filename),
		FileType:   string(Markdown),
		TotalPages: 1,
	}

	if text != "" {
		doc.Pages = []Page{{
			Number:   1,
			Text:     text,
			Tables:   tables,
			HasTable: tables > 0,
		}}
	}

	return doc, nil
}

// renderPlainText 遍历AST提取纯文本内容
// 块级节点之间以空行分隔，表格行列以管道符保留
func renderPlainText(root ast.Node) string {
	var b strings.Builder

	ast.WalkFunc(root, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				b.Write(n.Literal)
			}
		case *ast.Code:
			if entering {
				b.Write(n.Literal)
			}
		case *ast.CodeBlock:
			if entering {
				b.Write(n.Literal)
				b.WriteString("\n")
			}
		case *ast.TableCell:
			if !entering {
				b.WriteString(" | ")
			}
		case *ast.TableRow:
			if entering {
				b.WriteString("| ")
			} else {
				b.WriteString("\n")
			}
		case *ast.Heading, *ast.Paragraph, *ast.ListItem, *ast.Table:
			if !entering {
				b.WriteString("\n\n")
			}
		}
		return ast.GoToNext
	})

	return b.String()
}

// countTables 统计AST中的表格数量
func countTables(root ast.Node) int {
	count := 0
	ast.WalkFunc(root, func(node ast.Node, entering bool) ast.WalkStatus {
		if _, ok := node.(*ast.Table); ok && entering {
			count++
		}
		return ast.GoToNext
	})
	return count
}
