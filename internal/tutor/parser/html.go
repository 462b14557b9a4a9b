package parser

import (
	"context"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// HTMLParser 把 HTML 讲义转换为 markdown，标题转为 ATX (#) 形式供分块使用。
type HTMLParser struct {
	converter *md.Converter
}

// NewHTMLParser creates an HTMLParser.
func NewHTMLParser() *HTMLParser {
	conv := md.NewConverter("", true, &md.Options{HeadingStyle: "atx"})
	conv.Use(plugin.GitHubFlavored())
	return &HTMLParser{converter: conv}
}

// Parse converts the document body. Scripts and styles are dropped.
func (p *HTMLParser) Parse(_ context.Context, _ string, data []byte) (string, error) {
	cleaned := scriptRe.ReplaceAllString(string(data), "")
	cleaned = styleRe.ReplaceAllString(cleaned, "")

	out, err := p.converter.ConvertString(cleaned)
	if err != nil {
		return "", err
	}
	out = excessiveLinesRe.ReplaceAllString(out, "\n\n\n")
	return strings.TrimSpace(out) + "\n", nil
}
