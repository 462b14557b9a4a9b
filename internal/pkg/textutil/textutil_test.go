package textutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/tutor-x/internal/pkg/textutil"
)

func TestHashString(t *testing.T) {
	h := textutil.HashString("demand curve")
	assert.Len(t, h, 64)
	assert.Equal(t, h, textutil.HashString("demand curve"))
	assert.NotEqual(t, h, textutil.HashString("supply curve"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", textutil.TruncateString("abcdef", 3))
	assert.Equal(t, "ab", textutil.TruncateString("ab", 3))
	assert.Equal(t, "边际", textutil.TruncateString("边际效用", 2))
	assert.Equal(t, "", textutil.TruncateString("abc", 0))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		array  string
		object string
	}{
		{"纯数组", `[{"a":1}]`, `[{"a":1}]`, `{"a":1}`},
		{"带前后缀", "Here:\n[1,2]\nDone", "[1,2]", ""},
		{"无内容", "no json here", "", ""},
		{"顺序颠倒", "] then [", "", ""},
		{"对象", `Sure {"questions":[]} ok`, "[]", `{"questions":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.array, textutil.ExtractJSONArray(tt.in))
			assert.Equal(t, tt.object, textutil.ExtractJSONObject(tt.in))
		})
	}
}

func TestTokenize(t *testing.T) {
	got := textutil.Tokenize("What is the Price Elasticity of demand? Price, x")
	assert.Equal(t, []string{"price", "elasticity", "demand"}, got)
	assert.Empty(t, textutil.Tokenize("  ? ! "))
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"u", "x", "is", "u", "x"}, textutil.Words("U(x) is u, x."))
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, textutil.Clamp01(-0.3))
	assert.Equal(t, 1.0, textutil.Clamp01(1.7))
	assert.Equal(t, 0.4, textutil.Clamp01(0.4))
}
