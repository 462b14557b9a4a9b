// Package textutil 提供文本处理工具函数。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"
)

// HashString 计算字符串的 SHA256 哈希值（十六进制）。
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// ExtractJSONArray 返回 s 中第一个 '[' 到最后一个 ']' 之间的子串（含括号）。
// 未找到时返回空串。
func ExtractJSONArray(s string) string {
	return between(s, '[', ']')
}

// ExtractJSONObject 返回 s 中第一个 '{' 到最后一个 '}' 之间的子串（含括号）。
func ExtractJSONObject(s string) string {
	return between(s, '{', '}')
}

func between(s string, open, closing byte) string {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(s, closing)
	if end < start {
		return ""
	}
	return s[start : end+1]
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {},
	"what": {}, "when": {}, "which": {}, "why": {}, "with": {}, "we": {}, "you": {},
}

// Words 将文本切分为小写的字母数字序列，保留重复项。
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Tokenize 将文本切分为小写词项，去除停用词与单字符词项。
// 结果保持出现顺序并去重。
func Tokenize(s string) []string {
	fields := Words(s)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Clamp01 将 v 限制在 [0, 1]。
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
