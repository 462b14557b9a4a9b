package handler

import "time"

// Config 处理器配置。
type Config struct {
	// MaxFiles 单次上传的最大文件数
	MaxFiles int
	// MaxFileSize 单个文件大小上限（字节）
	MaxFileSize int64
	// ChatTimeout 检索阶段超时，流式输出不受限制
	ChatTimeout time.Duration
	// QuestionTimeout 练习题生成超时
	QuestionTimeout time.Duration
	// KeepAlive SSE 心跳间隔
	KeepAlive time.Duration
}

// DefaultConfig returns the default handler configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxFiles:        20,
		MaxFileSize:     50 << 20,
		ChatTimeout:     60 * time.Second,
		QuestionTimeout: 120 * time.Second,
		KeepAlive:       15 * time.Second,
	}
}

func (c *Config) complete() {
	d := DefaultConfig()
	if c.MaxFiles <= 0 {
		c.MaxFiles = d.MaxFiles
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = d.MaxFileSize
	}
	if c.ChatTimeout <= 0 {
		c.ChatTimeout = d.ChatTimeout
	}
	if c.QuestionTimeout <= 0 {
		c.QuestionTimeout = d.QuestionTimeout
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = d.KeepAlive
	}
}
