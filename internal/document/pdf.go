package document

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/kb-assistant/internal/ocr"
)

// DefaultOCRMinTextLen 触发OCR回退的页面文本长度阈值
// 直接提取的文本低于该长度视为扫描页
const DefaultOCRMinTextLen = 50

// PDFParser PDF文档解析器
// 逐页提取文本；扫描页在配置了OCR客户端时回退到图片识别
type PDFParser struct {
	ocrClient  ocr.Client     // OCR客户端，nil表示禁用OCR回退
	minTextLen int            // OCR回退的文本长度阈值
	logger     *logrus.Logger // 日志记录器
}

// PDFOption PDF解析器配置选项
type PDFOption func(*PDFParser)

// WithOCRClient 设置OCR客户端，启用扫描页回退
func WithOCRClient(client ocr.Client) PDFOption {
	return func(p *PDFParser) {
		p.ocrClient = client
	}
}

// WithOCRMinTextLen 设置触发OCR的文本长度阈值
func WithOCRMinTextLen(n int) PDFOption {
	return func(p *PDFParser) {
		if n > 0 {
			p.minTextLen = n
		}
	}
}

// WithPDFLogger 设置日志记录器
func WithPDFLogger(logger *logrus.Logger) PDFOption {
	return func(p *PDFParser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser(opts ...PDFOption) *PDFParser {
	p := &PDFParser{
		minTextLen: DefaultOCRMinTextLen,
		logger:     logrus.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// pageNumRe 从pdfcpu提取结果的文件名中解析页号
var pageNumRe = regexp.MustCompile(`(\d+)\.txt$`)

// needsOCR 判断页面是否应回退到OCR
// 阈值按字符数而不是字节数比较，中文页面和英文页面的标准一致
func (p *PDFParser) needsOCR(text string) bool {
	return p.ocrClient != nil && utf8.RuneCountInString(text) < p.minTextLen
}

// Parse 解析PDF文件，逐页提取文本内容
// 单页提取失败不会中断整个文档，该页以空文本保留
func (p *PDFParser) Parse(filePath string) (*Document, error) {
	conf := model.NewDefaultConfiguration()

	pageCount, err := api.PageCountFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF page count: %w", err)
	}

	pageTexts, err := p.extractPageTexts(filePath, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from PDF: %w", err)
	}

	doc := &Document{
		Source:     filepath.Base(filePath),
		FileType:   string(PDF),
		TotalPages: pageCount,
		Pages:      make([]Page, 0, pageCount),
	}

	for n := 1; n <= pageCount; n++ {
		text := strings.TrimSpace(pageTexts[n])
		usedOCR := false

		if p.needsOCR(text) {
			ocrText, err := p.ocrPage(filePath, n, conf)
			if err != nil {
				p.logger.WithFields(logrus.Fields{
					"file": filePath,
					"page": n,
				}).WithError(err).Warn("OCR fallback failed, keeping extracted text")
			} else if ocrText != "" {
				text = ocrText
				usedOCR = true
			}
		}

		pageText, tables := detectTextTables(text)
		doc.Pages = append(doc.Pages, Page{
			Number:   n,
			Text:     pageText,
			Tables:   tables,
			HasTable: tables > 0,
			UsedOCR:  usedOCR,
		})
	}

	return doc, nil
}

// ParseReader 从Reader解析PDF文档
// pdfcpu的内容提取基于文件，先落盘到临时文件再解析
func (p *PDFParser) ParseReader(r io.Reader, filename string) (*Document, error) {
	tmpFile, err := os.CreateTemp("", "kb_pdf_*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	tmpFile.Close()

	doc, err := p.Parse(tmpFile.Name())
	if err != nil {
		return nil, err
	}
	doc.Source = filepath.Base(filename)
	return doc, nil
}

// extractPageTexts 提取每一页的文本，返回页号到文本的映射
func (p *PDFParser) extractPageTexts(filePath string, conf *model.Configuration) (map[int]string, error) {
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractContentFile(filePath, tmpDir, nil, conf); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted text dir: %w", err)
	}

	// 按文件名排序保证页序稳定
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	texts := make(map[int]string)
	for _, entry := range entries {
		m := pageNumRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		pageNum, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		data, err := os.ReadFile(filepath.Join(tmpDir, entry.Name()))
		if err != nil {
			p.logger.WithField("file", entry.Name()).WithError(err).Warn("Failed to read extracted page text")
			continue
		}
		texts[pageNum] = string(data)
	}

	return texts, nil
}

// ocrPage 提取指定页的图片并逐张OCR，拼接识别结果
func (p *PDFParser) ocrPage(filePath string, pageNum int, conf *model.Configuration) (string, error) {
	tmpDir, err := os.MkdirTemp("", "pdfcpu_images_")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pages := []string{strconv.Itoa(pageNum)}
	if err := api.ExtractImagesFile(filePath, tmpDir, pages, conf); err != nil {
		return "", fmt.Errorf("failed to extract page images: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted images dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var parts []string
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(tmpDir, entry.Name()))
		if err != nil {
			continue
		}

		text, err := p.ocrClient.Recognize(context.Background(), data)
		if err != nil {
			// 单张图片识别失败不终止整页处理
			p.logger.WithField("image", entry.Name()).WithError(err).Warn("OCR recognition failed for image")
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n\n")), nil
}
