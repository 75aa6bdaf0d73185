package document

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF 生成一个测试用PDF，每个元素一页
func buildPDF(t *testing.T, pages ...string) *bytes.Reader {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		pdf.Cell(40, 10, text)
	}

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return bytes.NewReader(buf.Bytes())
}

func TestPDFParser(t *testing.T) {
	t.Run("ExtractsTextPerPage", func(t *testing.T) {
		parser := NewPDFParser()

		doc, err := parser.ParseReader(buildPDF(t, "Hello first page", "Second page content"), "dir/report.pdf")
		require.NoError(t, err)
		assert.Equal(t, "report.pdf", doc.Source)
		assert.Equal(t, "pdf", doc.FileType)
		assert.Equal(t, 2, doc.TotalPages)
		require.Len(t, doc.Pages, 2)

		assert.Equal(t, 1, doc.Pages[0].Number)
		assert.Contains(t, doc.Pages[0].Text, "Hello first page")
		assert.False(t, doc.Pages[0].UsedOCR)

		assert.Equal(t, 2, doc.Pages[1].Number)
		assert.Contains(t, doc.Pages[1].Text, "Second page content")
	})

	t.Run("InvalidDataFails", func(t *testing.T) {
		parser := NewPDFParser()
		_, err := parser.ParseReader(bytes.NewReader([]byte("not a pdf")), "broken.pdf")
		assert.Error(t, err)
	})
}

// stubOCR 测试用OCR客户端，返回固定文本并记录调用次数
type stubOCR struct {
	text  string
	calls int
}

func (s *stubOCR) Recognize(ctx context.Context, img []byte) (string, error) {
	s.calls++
	return s.text, nil
}

func (s *stubOCR) Name() string { return "stub" }

// buildScannedPDF 生成一个只含图片的单页PDF，模拟扫描件
func buildScannedPDF(t *testing.T) *bytes.Reader {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("scan", opts, bytes.NewReader(pngBuf.Bytes()))
	pdf.ImageOptions("scan", 20, 20, 100, 100, false, opts, 0, "")

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return bytes.NewReader(buf.Bytes())
}

func TestPDFParserOCRFallback(t *testing.T) {
	t.Run("ScannedPageUsesOCR", func(t *testing.T) {
		client := &stubOCR{text: "recognized scanned text"}
		parser := NewPDFParser(WithOCRClient(client), WithOCRMinTextLen(200))

		doc, err := parser.ParseReader(buildScannedPDF(t), "scan.pdf")
		require.NoError(t, err)
		require.Len(t, doc.Pages, 1)
		assert.True(t, doc.Pages[0].UsedOCR)
		assert.Contains(t, doc.Pages[0].Text, "recognized scanned text")
		assert.Greater(t, client.calls, 0)
	})

	t.Run("TextPageSkipsOCR", func(t *testing.T) {
		client := &stubOCR{text: "should not appear"}
		parser := NewPDFParser(WithOCRClient(client), WithOCRMinTextLen(5))

		doc, err := parser.ParseReader(buildPDF(t, "This page has plenty of extractable text"), "text.pdf")
		require.NoError(t, err)
		require.Len(t, doc.Pages, 1)
		assert.False(t, doc.Pages[0].UsedOCR)
		assert.NotContains(t, doc.Pages[0].Text, "should not appear")
		assert.Equal(t, 0, client.calls)
	})
}

func TestNeedsOCR(t *testing.T) {
	parser := NewPDFParser(WithOCRClient(&stubOCR{}), WithOCRMinTextLen(5))

	// 阈值按字符数比较，中文页面和英文页面的标准一致
	assert.True(t, parser.needsOCR("短文本"))
	assert.False(t, parser.needsOCR("这是一段完整文本"))
	assert.True(t, parser.needsOCR("abcd"))
	assert.False(t, parser.needsOCR("abcde"))

	// 未配置OCR客户端时永不回退
	bare := NewPDFParser(WithOCRMinTextLen(5))
	assert.False(t, bare.needsOCR(""))
}
