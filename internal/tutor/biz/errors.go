package biz

import (
	"errors"
	"fmt"
)

// RetrievalError 原始文件或检索范围读取失败，可重试。
type RetrievalError struct {
	Path string
	Err  error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve %s: %v", e.Path, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// ParseError 外部解析器失败，可重试，不接受部分结果。
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DegenerateDocumentError 文档未产生任何分块，不可重试。
type DegenerateDocumentError struct {
	DocumentID string
}

func (e *DegenerateDocumentError) Error() string {
	return fmt.Sprintf("document %s produced no chunks", e.DocumentID)
}

// EmbeddingError 批量嵌入失败，整批重试。
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// PersistenceError 写入分块、向量或状态失败，可重试。
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsTerminal reports whether retrying the ingestion cannot succeed.
func IsTerminal(err error) bool {
	var degenerate *DegenerateDocumentError
	return errors.As(err, &degenerate) || errors.Is(err, ErrDocumentNotFound)
}
