package parser

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// TextParser 处理 markdown 与纯文本。
type TextParser struct{}

// NewTextParser creates a TextParser.
func NewTextParser() *TextParser { return &TextParser{} }

// Parse normalises line endings and strips a UTF-8 BOM.
func (*TextParser) Parse(_ context.Context, fileName string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s is not valid UTF-8", fileName)
	}
	s := strings.TrimPrefix(string(data), "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n"), nil
}
