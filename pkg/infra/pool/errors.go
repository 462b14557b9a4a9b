// Package pool 基于 ants 提供有界 goroutine 池，用于并发执行文档摄取等后台任务。
package pool

import "errors"

var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("池已关闭")

	// ErrPoolOverload 池已满
	ErrPoolOverload = errors.New("池已满")
)
