package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter 以令牌桶限制对上游模型服务的请求速率。
// rps <= 0 表示不限流。
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter 创建限流器。
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait 阻塞直到允许下一次请求或 ctx 结束。
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.bucket == nil {
		return nil
	}
	return l.bucket.Wait(ctx)
}
