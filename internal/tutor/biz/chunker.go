package biz

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultSoftMinChars = 500
	DefaultHardMaxChars = 3500
)

// Chunker 两阈值贪心分块：优先在标题处切分，超过上限时强制切分。
type Chunker struct {
	SoftMin int
	HardMax int
}

// NewChunker returns a Chunker with the default thresholds.
func NewChunker() *Chunker {
	return &Chunker{SoftMin: DefaultSoftMinChars, HardMax: DefaultHardMaxChars}
}

// Chunk splits text into ordered, non-empty chunks. Lengths are counted in
// characters. A chunk only exceeds HardMax when a single line does.
func (c *Chunker) Chunk(text string) []string {
	lines := strings.Split(text, "\n")
	if strings.HasSuffix(text, "\n") {
		lines = lines[:len(lines)-1]
	}

	var (
		chunks []string
		buf    strings.Builder
		size   int
	)
	flush := func() {
		if s := buf.String(); strings.TrimSpace(s) != "" {
			chunks = append(chunks, s)
		}
		buf.Reset()
		size = 0
	}

	for _, line := range lines {
		n := utf8.RuneCountInString(line) + 1
		switch {
		case strings.HasPrefix(line, "#") && size > c.SoftMin:
			flush()
		case size > 0 && size+n > c.HardMax:
			flush()
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
		size += n

		if size > c.HardMax {
			flush()
		}
	}
	flush()
	return chunks
}
