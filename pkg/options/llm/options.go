// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/tutor-x/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（ollama, openai）。
	Provider string `json:"provider" mapstructure:"provider"`
	BaseURL  string `json:"base-url" mapstructure:"base-url"`
	APIKey   string `json:"-" mapstructure:"api-key"`

	EmbedModel string `json:"embed-model" mapstructure:"embed-model"`
	ChatModel  string `json:"chat-model" mapstructure:"chat-model"`
	// Dimensions 请求的向量维度（OpenAI text-embedding-3 支持）。0 表示模型默认。
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`

	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries   int           `json:"max-retries" mapstructure:"max-retries"`
	Organization string        `json:"organization" mapstructure:"organization"`

	// RateLimit 每秒请求数，<=0 不限流。
	RateLimit float64 `json:"rate-limit" mapstructure:"rate-limit"`
	RateBurst int     `json:"rate-burst" mapstructure:"rate-burst"`

	// 熔断配置
	BreakerMaxFailures int           `json:"breaker-max-failures" mapstructure:"breaker-max-failures"`
	BreakerTimeout     time.Duration `json:"breaker-timeout" mapstructure:"breaker-timeout"`

	// CacheTTL 查询向量缓存时长，0 关闭缓存。
	CacheTTL time.Duration `json:"cache-ttl" mapstructure:"cache-ttl"`
}

// NewProviderOptions 创建默认 LLM 供应商配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:           "openai",
		BaseURL:            "https://api.openai.com/v1",
		EmbedModel:         "text-embedding-3-small",
		ChatModel:          "gpt-4o-mini",
		Timeout:            120 * time.Second,
		MaxRetries:         3,
		RateBurst:          1,
		BreakerMaxFailures: 5,
		BreakerTimeout:     60 * time.Second,
		CacheTTL:           24 * time.Hour,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"embed_model":  o.EmbedModel,
		"chat_model":   o.ChatModel,
		"dimensions":   o.Dimensions,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "llm."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (ollama, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key.")
	fs.StringVar(&o.EmbedModel, p+"embed-model", o.EmbedModel, "Embedding model name.")
	fs.StringVar(&o.ChatModel, p+"chat-model", o.ChatModel, "Chat model name.")
	fs.IntVar(&o.Dimensions, p+"dimensions", o.Dimensions, "Requested embedding dimensions (0 = model default).")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "LLM maximum number of retries.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "LLM organization ID (optional).")
	fs.Float64Var(&o.RateLimit, p+"rate-limit", o.RateLimit, "LLM requests per second (<=0 disables limiting).")
	fs.IntVar(&o.RateBurst, p+"rate-burst", o.RateBurst, "LLM rate limiter burst.")
	fs.IntVar(&o.BreakerMaxFailures, p+"breaker-max-failures", o.BreakerMaxFailures, "Consecutive failures before the circuit opens.")
	fs.DurationVar(&o.BreakerTimeout, p+"breaker-timeout", o.BreakerTimeout, "How long the circuit stays open.")
	fs.DurationVar(&o.CacheTTL, p+"cache-ttl", o.CacheTTL, "Query embedding cache TTL (0 disables caching).")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("llm provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("llm base-url is required"))
	}
	if o.EmbedModel == "" || o.ChatModel == "" {
		errs = append(errs, fmt.Errorf("llm embed-model and chat-model are required"))
	}
	// OpenAI 供应商需要 API key
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm api-key is required for openai provider"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm timeout must be positive"))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
func (o *ProviderOptions) Complete() error {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	return nil
}
