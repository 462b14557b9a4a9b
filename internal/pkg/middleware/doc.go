// Package middleware 提供 gin 中间件：请求 ID、panic 恢复、访问日志、请求体限制。
package middleware
