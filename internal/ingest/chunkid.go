package ingest

import (
	"fmt"
)

// ChunkRef 待入库的分块及其来源信息
// 由页面分块扩展而来，携带计算分块标识所需的全部字段
type ChunkRef struct {
	ID         string // 分块标识符，由AssignIDs填充
	Text       string // 分块文本内容
	Source     string // 源文件名
	FileType   string // 文件类型
	Page       int    // 页号
	TotalPages int    // 文档总页数
	HasTable   bool   // 所属页面是否包含表格
	UsedOCR    bool   // 所属页面文本是否经过OCR提取
	Index      int    // 页内分块索引，由AssignIDs填充
}

// PageKey 计算分块所属页面的标识前缀
// 表格和OCR后缀只在对应标志置位时出现
func PageKey(source, fileType string, page int, hasTable, usedOCR bool) string {
	tableSuffix := ""
	if hasTable {
		tableSuffix = "_table"
	}
	ocrSuffix := ""
	if usedOCR {
		ocrSuffix = "_ocr"
	}
	return fmt.Sprintf("%s:%s:page_%d%s%s", source, fileType, page, tableSuffix, ocrSuffix)
}

// ChunkID 计算完整的分块标识符
// 形如 Report.pdf:pdf:page_3_table_ocr:chunk_0
func ChunkID(source, fileType string, page int, hasTable, usedOCR bool, index int) string {
	return fmt.Sprintf("%s:chunk_%d", PageKey(source, fileType, page, hasTable, usedOCR), index)
}

// ChunkType 分块内容类型的元数据取值
// 如 pdf_text、docx_table
func ChunkType(fileType string, hasTable bool) string {
	if hasTable {
		return fileType + "_table"
	}
	return fileType + "_text"
}

// AssignIDs 按顺序为分块分配确定性标识符
// 遍历时在页面标识变化处重置页内计数器：相同输入在多次运行间
// 产生完全相同的标识序列，这是增量摄取赖以工作的前提
func AssignIDs(chunks []ChunkRef) {
	lastPageKey := ""
	index := 0

	for i := range chunks {
		pageKey := PageKey(chunks[i].Source, chunks[i].FileType, chunks[i].Page,
			chunks[i].HasTable, chunks[i].UsedOCR)

		if pageKey == lastPageKey {
			index++
		} else {
			index = 0
		}

		chunks[i].Index = index
		chunks[i].ID = fmt.Sprintf("%s:chunk_%d", pageKey, index)
		lastPageKey = pageKey
	}
}
