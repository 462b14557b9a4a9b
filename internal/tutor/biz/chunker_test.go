package biz

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_SplitsAtHeadingAfterSoftMin(t *testing.T) {
	body := strings.Repeat("a", 501)
	text := "# Intro\n" + body + "\n# Methods\n" + strings.Repeat("b", 10)

	chunks := NewChunker().Chunk(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "# Intro\n"+body+"\n", chunks[0])
	assert.True(t, strings.HasPrefix(chunks[1], "# Methods\n"))
}

func TestChunker_AbsorbsHeadingBelowSoftMin(t *testing.T) {
	text := "# Intro\nshort\n# Methods\nalso short\n"
	chunks := NewChunker().Chunk(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	for _, text := range []string{"x", "one line", "# Heading\nbody", strings.Repeat("z", 499)} {
		assert.Len(t, NewChunker().Chunk(text), 1, text)
	}
}

func TestChunker_EmptyAndWhitespace(t *testing.T) {
	c := NewChunker()
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\n\t\n"))
}

func TestChunker_HardMaxWithoutHeadings(t *testing.T) {
	line := strings.Repeat("w", 99)
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	text := b.String()

	c := NewChunker()
	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), c.HardMax)
		assert.NotEmpty(t, strings.TrimSpace(ch))
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunker_OversizedLineStandsAlone(t *testing.T) {
	c := &Chunker{SoftMin: 10, HardMax: 50}
	long := strings.Repeat("L", 120)
	text := "intro line\n" + long + "\ntail\n"

	chunks := c.Chunk(text)
	require.Len(t, chunks, 3)
	assert.Equal(t, "intro line\n", chunks[0])
	assert.Equal(t, long+"\n", chunks[1])
	assert.Equal(t, "tail\n", chunks[2])
}

func TestChunker_PreservesContent(t *testing.T) {
	c := &Chunker{SoftMin: 20, HardMax: 60}
	text := "# A\n" + strings.Repeat("alpha beta ", 5) + "\n# B\n$x^2$ and \\int f\n# C\n" +
		strings.Repeat("gamma ", 20) + "\nend"

	chunks := c.Chunk(text)
	require.NotEmpty(t, chunks)
	assert.Equal(t, text+"\n", strings.Join(chunks, ""))
	for _, ch := range chunks {
		if utf8.RuneCountInString(ch) > c.HardMax {
			// 只有单行超长时允许超过上限
			assert.Equal(t, 1, strings.Count(ch, "\n"), ch)
		}
	}
}

func TestChunker_CountsRunes(t *testing.T) {
	c := &Chunker{SoftMin: 5, HardMax: 12}
	// 每行 4 个字符 + 换行，按字节计算会提前切分
	text := "均衡价格\n需求弹性\n"
	chunks := c.Chunk(text)
	require.Len(t, chunks, 1)
}
