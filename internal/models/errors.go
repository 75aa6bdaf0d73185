package models

import "errors"

var (
	// ErrDocumentNotFound 文档记录不存在错误
	ErrDocumentNotFound = errors.New("document not found")

	// ErrRunNotFound 摄取运行记录不存在错误
	ErrRunNotFound = errors.New("ingest run not found")
)
