package storage

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrFileNotFound 文件不存在错误
var ErrFileNotFound = errors.New("file not found")

// FileInfo 文件元数据结构
type FileInfo struct {
	Name     string // 文件名，作为源文件的唯一标识
	Size     int64  // 文件大小(字节)
	MimeType string // 文件MIME类型(可选)
	Path     string // 内部存储路径(实现相关)
}

// Storage 知识库文档存储接口
// 文档以原始文件名寻址，摄取流水线按名称扫描和读取
// 可以有不同实现(本地文件系统、MinIO等)
type Storage interface {
	// Save 保存文件
	Save(reader io.Reader, name string) (FileInfo, error)

	// Open 按文件名打开文件内容
	Open(name string) (io.ReadCloser, error)

	// Delete 按文件名删除文件
	Delete(name string) error

	// List 列出所有文档文件，跳过临时文件和隐藏文件
	List() ([]FileInfo, error)

	// Exists 检查文件是否存在
	Exists(name string) (bool, error)
}

// skipFile 判断是否为应跳过的非文档文件
// Office在编辑时会留下 ~$ 开头的临时文件
func skipFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".")
}

// getMimeType 简单根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
