package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/tutor-x/internal/tutor/biz"
	"github.com/kart-io/tutor-x/pkg/utils/errors"
)

// Router 按扩展名选择解析器。未登记的扩展名交给 fallback。
type Router struct {
	byExt    map[string]biz.Parser
	fallback biz.Parser
}

var _ biz.Parser = (*Router)(nil)

// NewRouter creates a Router with the in-process parsers registered. remote
// handles every other extension and may be nil when no parsing service is
// configured.
func NewRouter(remote biz.Parser) *Router {
	r := &Router{byExt: make(map[string]biz.Parser), fallback: remote}
	text := NewTextParser()
	for _, ext := range []string{".md", ".markdown", ".txt", ".tex"} {
		r.Register(ext, text)
	}
	html := NewHTMLParser()
	for _, ext := range []string{".html", ".htm"} {
		r.Register(ext, html)
	}
	return r
}

// Register binds an extension (with leading dot) to a parser.
func (r *Router) Register(ext string, p biz.Parser) {
	r.byExt[strings.ToLower(ext)] = p
}

// Parse dispatches on the extension of fileName.
func (r *Router) Parse(ctx context.Context, fileName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	p, ok := r.byExt[ext]
	if !ok {
		p = r.fallback
	}
	if p == nil {
		return "", errors.ErrParserUnavailable.WithMessage(fmt.Sprintf("No parser for %q", ext))
	}
	logger.Debugw("parsing document", "file", fileName, "bytes", len(data), "parser", fmt.Sprintf("%T", p))
	return p.Parse(ctx, fileName, data)
}
