package parser

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/tutor-x/internal/tutor/biz"
	"github.com/kart-io/tutor-x/pkg/llm/resilience"
	"github.com/kart-io/tutor-x/pkg/utils/errors"
	"github.com/kart-io/tutor-x/pkg/utils/httpclient"
)

// DefaultInstruction 要求解析服务保留标题层级与 LaTeX 公式。
const DefaultInstruction = "These are university economics course materials. " +
	"Preserve every heading as a markdown heading and write all mathematics as LaTeX " +
	"delimited by $ for inline and $$ for display formulas."

// LlamaParseConfig LlamaParse 客户端配置。
type LlamaParseConfig struct {
	BaseURL      string
	APIKey       string
	Instruction  string
	PollInterval time.Duration
	// Timeout 单个 HTTP 请求超时
	Timeout    time.Duration
	MaxRetries int
}

// DefaultLlamaParseConfig returns the default configuration.
func DefaultLlamaParseConfig() *LlamaParseConfig {
	return &LlamaParseConfig{
		BaseURL:      "https://api.cloud.llamaindex.ai/api/parsing",
		Instruction:  DefaultInstruction,
		PollInterval: 2 * time.Second,
		Timeout:      60 * time.Second,
		MaxRetries:   2,
	}
}

// LlamaParse 调用 LlamaParse 任务接口：上传、轮询、读取 markdown 结果。
type LlamaParse struct {
	config *LlamaParseConfig
	client *httpclient.Client
}

var _ biz.Parser = (*LlamaParse)(nil)

// NewLlamaParse creates a client. The API key is required.
func NewLlamaParse(cfg *LlamaParseConfig) (*LlamaParse, error) {
	if cfg == nil {
		cfg = DefaultLlamaParseConfig()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llamaparse: api key is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &LlamaParse{config: cfg, client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries)}, nil
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error_message,omitempty"`
}

type markdownResponse struct {
	Markdown string `json:"markdown"`
}

// 任务状态
const (
	jobPending = "PENDING"
	jobSuccess = "SUCCESS"
	jobError   = "ERROR"
)

// Parse uploads the file and waits until the job finishes or ctx is done.
// No partial result is ever returned.
func (p *LlamaParse) Parse(ctx context.Context, fileName string, data []byte) (string, error) {
	job, err := p.upload(ctx, fileName, data)
	if err != nil {
		return "", p.wrap("upload", err)
	}
	log := logger.With("job_id", job.ID, "file", fileName)
	log.Debugw("parse job submitted")

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	for status := job.Status; status != jobSuccess; {
		if status == jobError {
			return "", resilience.Permanent(errors.ErrParserUnavailable.WithMessagef("parse job %s failed: %s", job.ID, job.Error))
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		if job, err = p.status(ctx, job.ID); err != nil {
			return "", p.wrap("status", err)
		}
		status = job.Status
	}

	var out markdownResponse
	req, err := p.newRequest(ctx, http.MethodGet, "/job/"+job.ID+"/result/markdown", nil, "")
	if err != nil {
		return "", err
	}
	if err := p.client.DoJSON(req, &out); err != nil {
		return "", p.wrap("result", err)
	}
	log.Infow("parse job finished", "markdown_chars", len(out.Markdown))
	return out.Markdown, nil
}

func (p *LlamaParse) upload(ctx context.Context, fileName string, data []byte) (*jobResponse, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	_ = w.WriteField("result_type", "markdown")
	if p.config.Instruction != "" {
		_ = w.WriteField("parsing_instruction", p.config.Instruction)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := p.newRequest(ctx, http.MethodPost, "/upload", &body, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var job jobResponse
	if err := p.client.DoJSON(req, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, fmt.Errorf("upload response has no job id")
	}
	if job.Status == "" {
		job.Status = jobPending
	}
	return &job, nil
}

func (p *LlamaParse) status(ctx context.Context, id string) (*jobResponse, error) {
	req, err := p.newRequest(ctx, http.MethodGet, "/job/"+id, nil, "")
	if err != nil {
		return nil, err
	}
	var job jobResponse
	if err := p.client.DoJSON(req, &job); err != nil {
		return nil, err
	}
	job.ID = id
	return &job, nil
}

func (p *LlamaParse) newRequest(ctx context.Context, method, path string, body *bytes.Buffer, contentType string) (*http.Request, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// wrap 4xx（429 除外）不会因重试而成功。
func (p *LlamaParse) wrap(op string, err error) error {
	wrapped := errors.ErrParserUnavailable.WithCause(fmt.Errorf("llamaparse %s: %w", op, err))
	var se *httpclient.StatusError
	if stderrors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
		return resilience.Permanent(wrapped)
	}
	return wrapped
}
