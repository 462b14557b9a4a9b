package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/tutor-x/pkg/llm"
	"github.com/kart-io/tutor-x/pkg/utils/httpclient"
)

// Provider 为 llm.Provider 增加限流、重试和熔断。
// Embedding 与 Chat 使用各自独立的熔断器。
type Provider struct {
	provider llm.Provider
	retry    *RetryConfig
	limiter  *Limiter
	embedCB  *CircuitBreaker
	chatCB   *CircuitBreaker
}

var _ llm.Provider = (*Provider)(nil)

// Wrap 创建带韧性功能的 Provider。
func Wrap(provider llm.Provider, retryConfig *RetryConfig, cbConfig *CircuitBreakerConfig, limiter *Limiter) *Provider {
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}
	if retryConfig.Retryable == nil {
		retryConfig.Retryable = IsRetryableError
	}
	return &Provider{
		provider: provider,
		retry:    retryConfig,
		limiter:  limiter,
		embedCB:  NewCircuitBreaker(cbConfig),
		chatCB:   NewCircuitBreaker(cbConfig),
	}
}

func (r *Provider) call(ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) error) error {
	return RetryWithCircuitBreaker(ctx, r.retry, cb, func(ctx context.Context) error {
		if err := r.limiter.Wait(ctx); err != nil {
			return Permanent(err)
		}
		return fn(ctx)
	})
}

// Embed 为多个文本生成向量嵌入。
func (r *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := r.call(ctx, r.embedCB, func(ctx context.Context) error {
		var err error
		result, err = r.provider.Embed(ctx, texts)
		return err
	})
	return result, err
}

// EmbedSingle 为单个文本生成向量嵌入。
func (r *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := r.call(ctx, r.embedCB, func(ctx context.Context) error {
		var err error
		result, err = r.provider.EmbedSingle(ctx, text)
		return err
	})
	return result, err
}

// Chat 进行多轮对话。
func (r *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	var result string
	err := r.call(ctx, r.chatCB, func(ctx context.Context) error {
		var err error
		result, err = r.provider.Chat(ctx, messages, opts...)
		return err
	})
	return result, err
}

// Generate 根据提示生成文本。
func (r *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	var result string
	err := r.call(ctx, r.chatCB, func(ctx context.Context) error {
		var err error
		result, err = r.provider.Generate(ctx, prompt, systemPrompt)
		return err
	})
	return result, err
}

// ChatStream 只对建立流的请求做重试，流开始后的错误通过 StreamChunk 返回。
func (r *Provider) ChatStream(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (<-chan llm.StreamChunk, error) {
	var ch <-chan llm.StreamChunk
	err := r.call(ctx, r.chatCB, func(ctx context.Context) error {
		var err error
		ch, err = r.provider.ChatStream(ctx, messages, opts...)
		return err
	})
	return ch, err
}

// Name 返回供应商名称。
func (r *Provider) Name() string {
	return r.provider.Name() + "-resilient"
}

// EmbedState 返回 Embedding 熔断器状态。
func (r *Provider) EmbedState() CircuitBreakerState { return r.embedCB.State() }

// ChatState 返回 Chat 熔断器状态。
func (r *Provider) ChatState() CircuitBreakerState { return r.chatCB.State() }

// IsRetryableError 判断错误是否可重试。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitBreakerOpen) || IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode >= 500,
			se.StatusCode == http.StatusTooManyRequests,
			se.StatusCode == http.StatusRequestTimeout:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		strings.Contains(err.Error(), "connection reset") {
		return true
	}

	logger.Debugw("error not retryable", "error", err.Error())
	return false
}
