package tutorsvc

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/tutor-x/internal/tutor/biz"
	"github.com/kart-io/tutor-x/internal/tutor/handler"
	"github.com/kart-io/tutor-x/internal/tutor/parser"
	"github.com/kart-io/tutor-x/internal/tutor/queue"
	"github.com/kart-io/tutor-x/pkg/options"
)

// 存储后端
const (
	BackendLocal  = "local"
	BackendGridFS = "gridfs"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

var (
	_ options.IOptions = (*IngestOptions)(nil)
	_ options.IOptions = (*RetrievalOptions)(nil)
	_ options.IOptions = (*ParserOptions)(nil)
	_ options.IOptions = (*StorageOptions)(nil)
	_ options.IOptions = (*HandlerOptions)(nil)
)

// IngestOptions 摄取流水线配置。
type IngestOptions struct {
	// Workers 并发处理的文档数
	Workers int `json:"workers" mapstructure:"workers"`
	// MaxAttempts 进程内队列的最大执行次数；JetStream 使用 nats.max-deliver
	MaxAttempts int           `json:"max-attempts" mapstructure:"max-attempts"`
	Backoff     time.Duration `json:"backoff" mapstructure:"backoff"`

	WatchdogInterval time.Duration `json:"watchdog-interval" mapstructure:"watchdog-interval"`
	// StuckAfter 文档停留在 uploading 超过该时长后被标记为 failed
	StuckAfter    time.Duration `json:"stuck-after" mapstructure:"stuck-after"`
	WatchdogBatch int           `json:"watchdog-batch" mapstructure:"watchdog-batch"`

	// NotationBudget 符号提取送入模型的字符上限
	NotationBudget int `json:"notation-budget" mapstructure:"notation-budget"`
}

// NewIngestOptions creates IngestOptions with defaults.
func NewIngestOptions() *IngestOptions {
	return &IngestOptions{
		Workers:          4,
		MaxAttempts:      3,
		Backoff:          5 * time.Second,
		WatchdogInterval: time.Minute,
		StuckAfter:       30 * time.Minute,
		WatchdogBatch:    100,
		NotationBudget:   biz.DefaultNotationBudget,
	}
}

// AddFlags adds flags to the flagset.
func (o *IngestOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "ingest."
	fs.IntVar(&o.Workers, p+"workers", o.Workers, "Documents ingested concurrently.")
	fs.IntVar(&o.MaxAttempts, p+"max-attempts", o.MaxAttempts, "Attempts per ingestion event on the in-process queue.")
	fs.DurationVar(&o.Backoff, p+"backoff", o.Backoff, "Base delay between in-process ingestion attempts.")
	fs.DurationVar(&o.WatchdogInterval, p+"watchdog-interval", o.WatchdogInterval, "How often to scan for stuck documents.")
	fs.DurationVar(&o.StuckAfter, p+"stuck-after", o.StuckAfter, "Time in uploading after which a document is marked failed.")
	fs.IntVar(&o.WatchdogBatch, p+"watchdog-batch", o.WatchdogBatch, "Maximum documents failed per watchdog scan.")
	fs.IntVar(&o.NotationBudget, p+"notation-budget", o.NotationBudget, "Characters of document text sent for notation extraction.")
}

// Validate validates the options.
func (o *IngestOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("ingest workers must be positive"))
	}
	if o.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("ingest max-attempts must be positive"))
	}
	if o.WatchdogInterval <= 0 || o.StuckAfter <= 0 {
		errs = append(errs, fmt.Errorf("ingest watchdog-interval and stuck-after must be positive"))
	}
	return errs
}

// LocalConfig converts the options to the in-process queue configuration.
func (o *IngestOptions) LocalConfig() *queue.LocalConfig {
	return &queue.LocalConfig{MaxAttempts: o.MaxAttempts, Backoff: o.Backoff}
}

// WatchdogConfig converts the options to the watchdog configuration.
func (o *IngestOptions) WatchdogConfig() *biz.WatchdogConfig {
	return &biz.WatchdogConfig{
		Interval:   o.WatchdogInterval,
		StuckAfter: o.StuckAfter,
		BatchSize:  o.WatchdogBatch,
	}
}

// RetrievalOptions 混合检索与多样性选择配置。
type RetrievalOptions struct {
	// Alpha 向量得分权重
	Alpha     float64 `json:"alpha" mapstructure:"alpha"`
	Threshold float64 `json:"threshold" mapstructure:"threshold"`
	Count     int     `json:"count" mapstructure:"count"`
	Overfetch int     `json:"overfetch" mapstructure:"overfetch"`
	// LexicalOnly 仅词项命中的候选所需的词项得分，0 表示关闭
	LexicalOnly float64 `json:"lexical-only" mapstructure:"lexical-only"`
	// Target 多样性选择后进入上下文的 chunk 数
	Target int `json:"target" mapstructure:"target"`
}

// NewRetrievalOptions creates RetrievalOptions with defaults.
func NewRetrievalOptions() *RetrievalOptions {
	d := biz.DefaultRetrieverConfig()
	return &RetrievalOptions{
		Alpha:       d.Alpha,
		Threshold:   d.Threshold,
		Count:       d.Count,
		Overfetch:   d.Overfetch,
		LexicalOnly: d.LexicalOnly,
		Target:      biz.DefaultSelectTarget,
	}
}

// AddFlags adds flags to the flagset.
func (o *RetrievalOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "retrieval."
	fs.Float64Var(&o.Alpha, p+"alpha", o.Alpha, "Weight of the vector score in hybrid fusion (0-1).")
	fs.Float64Var(&o.Threshold, p+"threshold", o.Threshold, "Minimum fused score kept.")
	fs.IntVar(&o.Count, p+"count", o.Count, "Default number of retrieval results.")
	fs.IntVar(&o.Overfetch, p+"overfetch", o.Overfetch, "Candidates fetched per source as a multiple of count.")
	fs.Float64Var(&o.LexicalOnly, p+"lexical-only", o.LexicalOnly, "Lexical score a keyword-only hit needs to be kept; 0 scores it by fusion.")
	fs.IntVar(&o.Target, p+"target", o.Target, "Chunks chosen by diversity selection for chat context.")
}

// Validate validates the options.
func (o *RetrievalOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Alpha < 0 || o.Alpha > 1 {
		errs = append(errs, fmt.Errorf("retrieval alpha must be in [0, 1]"))
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		errs = append(errs, fmt.Errorf("retrieval threshold must be in [0, 1]"))
	}
	if o.LexicalOnly < 0 || o.LexicalOnly > 1 {
		errs = append(errs, fmt.Errorf("retrieval lexical-only must be in [0, 1]"))
	}
	if o.Count <= 0 || o.Overfetch <= 0 || o.Target <= 0 {
		errs = append(errs, fmt.Errorf("retrieval count, overfetch and target must be positive"))
	}
	return errs
}

// RetrieverConfig converts the options to the retriever configuration.
func (o *RetrievalOptions) RetrieverConfig() *biz.RetrieverConfig {
	return &biz.RetrieverConfig{
		Alpha:       o.Alpha,
		Threshold:   o.Threshold,
		Count:       o.Count,
		Overfetch:   o.Overfetch,
		LexicalOnly: o.LexicalOnly,
	}
}

// ParserOptions 远程文档解析服务配置。APIKey 为空时仅支持本地可解析的格式。
type ParserOptions struct {
	BaseURL      string        `json:"base-url" mapstructure:"base-url"`
	APIKey       string        `json:"-" mapstructure:"api-key"`
	Instruction  string        `json:"instruction" mapstructure:"instruction"`
	PollInterval time.Duration `json:"poll-interval" mapstructure:"poll-interval"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewParserOptions creates ParserOptions with defaults.
func NewParserOptions() *ParserOptions {
	d := parser.DefaultLlamaParseConfig()
	return &ParserOptions{
		BaseURL:      d.BaseURL,
		Instruction:  d.Instruction,
		PollInterval: d.PollInterval,
		Timeout:      d.Timeout,
	}
}

// AddFlags adds flags to the flagset.
func (o *ParserOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "parser."
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LlamaParse API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LlamaParse API key (empty disables PDF/DOCX/PPTX parsing).")
	fs.StringVar(&o.Instruction, p+"instruction", o.Instruction, "Parsing instruction sent with every upload.")
	fs.DurationVar(&o.PollInterval, p+"poll-interval", o.PollInterval, "Interval between job status polls.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Per-request timeout against the parsing service.")
}

// Validate validates the options.
func (o *ParserOptions) Validate() []error {
	if o == nil || o.APIKey == "" {
		return nil
	}

	var errs []error
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("parser base-url is required"))
	}
	if o.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("parser poll-interval must be positive"))
	}
	return errs
}

// LlamaParseConfig converts the options to the LlamaParse client configuration.
func (o *ParserOptions) LlamaParseConfig() *parser.LlamaParseConfig {
	cfg := parser.DefaultLlamaParseConfig()
	cfg.BaseURL = o.BaseURL
	cfg.APIKey = o.APIKey
	cfg.Instruction = o.Instruction
	cfg.PollInterval = o.PollInterval
	cfg.Timeout = o.Timeout
	return cfg
}

// StorageOptions 选择各类辅助存储的后端。
type StorageOptions struct {
	// Blob local | gridfs
	Blob      string `json:"blob" mapstructure:"blob"`
	LocalRoot string `json:"local-root" mapstructure:"local-root"`
	// Checkpoints redis | memory
	Checkpoints   string        `json:"checkpoints" mapstructure:"checkpoints"`
	CheckpointTTL time.Duration `json:"checkpoint-ttl" mapstructure:"checkpoint-ttl"`
	// Events redis | memory
	Events string `json:"events" mapstructure:"events"`
	// KeyPrefix Redis 键与频道前缀
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

// NewStorageOptions creates StorageOptions with defaults.
func NewStorageOptions() *StorageOptions {
	return &StorageOptions{
		Blob:          BackendLocal,
		LocalRoot:     "data/materials",
		Checkpoints:   BackendMemory,
		CheckpointTTL: 7 * 24 * time.Hour,
		Events:        BackendMemory,
		KeyPrefix:     "tutor:",
	}
}

// AddFlags adds flags to the flagset.
func (o *StorageOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "storage."
	fs.StringVar(&o.Blob, p+"blob", o.Blob, "Uploaded file storage (local|gridfs).")
	fs.StringVar(&o.LocalRoot, p+"local-root", o.LocalRoot, "Root directory of the local blob store.")
	fs.StringVar(&o.Checkpoints, p+"checkpoints", o.Checkpoints, "Pipeline checkpoint storage (redis|memory).")
	fs.DurationVar(&o.CheckpointTTL, p+"checkpoint-ttl", o.CheckpointTTL, "Lifetime of pipeline checkpoints in Redis.")
	fs.StringVar(&o.Events, p+"events", o.Events, "Status event fan-out (redis|memory).")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Prefix of Redis keys and channels.")
}

// Validate validates the options.
func (o *StorageOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Blob {
	case BackendLocal:
		if o.LocalRoot == "" {
			errs = append(errs, fmt.Errorf("storage local-root is required for the local blob store"))
		}
	case BackendGridFS:
	default:
		errs = append(errs, fmt.Errorf("invalid blob backend %q", o.Blob))
	}
	for name, v := range map[string]string{"checkpoints": o.Checkpoints, "events": o.Events} {
		if v != BackendRedis && v != BackendMemory {
			errs = append(errs, fmt.Errorf("invalid %s backend %q", name, v))
		}
	}
	return errs
}

// NeedsRedis reports whether any backend is served by Redis.
func (o *StorageOptions) NeedsRedis() bool {
	return o.Checkpoints == BackendRedis || o.Events == BackendRedis
}

// HandlerOptions HTTP 接口限制与超时。
type HandlerOptions struct {
	MaxFiles        int           `json:"max-files" mapstructure:"max-files"`
	MaxFileSize     int64         `json:"max-file-size" mapstructure:"max-file-size"`
	ChatTimeout     time.Duration `json:"chat-timeout" mapstructure:"chat-timeout"`
	QuestionTimeout time.Duration `json:"question-timeout" mapstructure:"question-timeout"`
	KeepAlive       time.Duration `json:"keep-alive" mapstructure:"keep-alive"`
}

// NewHandlerOptions creates HandlerOptions with defaults.
func NewHandlerOptions() *HandlerOptions {
	d := handler.DefaultConfig()
	return &HandlerOptions{
		MaxFiles:        d.MaxFiles,
		MaxFileSize:     d.MaxFileSize,
		ChatTimeout:     d.ChatTimeout,
		QuestionTimeout: d.QuestionTimeout,
		KeepAlive:       d.KeepAlive,
	}
}

// AddFlags adds flags to the flagset.
func (o *HandlerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "api."
	fs.IntVar(&o.MaxFiles, p+"max-files", o.MaxFiles, "Maximum files per upload request.")
	fs.Int64Var(&o.MaxFileSize, p+"max-file-size", o.MaxFileSize, "Maximum size of a single uploaded file in bytes.")
	fs.DurationVar(&o.ChatTimeout, p+"chat-timeout", o.ChatTimeout, "Time allowed before a chat answer starts streaming.")
	fs.DurationVar(&o.QuestionTimeout, p+"question-timeout", o.QuestionTimeout, "Time allowed for question generation.")
	fs.DurationVar(&o.KeepAlive, p+"keep-alive", o.KeepAlive, "Interval of SSE keepalive pings.")
}

// Validate validates the options.
func (o *HandlerOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.MaxFiles <= 0 || o.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("api max-files and max-file-size must be positive"))
	}
	if o.ChatTimeout <= 0 || o.QuestionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("api chat-timeout and question-timeout must be positive"))
	}
	return errs
}

// Config converts the options to the handler configuration.
func (o *HandlerOptions) Config() *handler.Config {
	return &handler.Config{
		MaxFiles:        o.MaxFiles,
		MaxFileSize:     o.MaxFileSize,
		ChatTimeout:     o.ChatTimeout,
		QuestionTimeout: o.QuestionTimeout,
		KeepAlive:       o.KeepAlive,
	}
}
