package biz

import "unicode/utf8"

// Density 估算文本的数学密度：'$' 与 '\' 的出现次数除以 (长度/50)，限制在 [0,1]。
func Density(text string) float64 {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	var marks int
	for _, r := range text {
		if r == '$' || r == '\\' {
			marks++
		}
	}
	d := float64(marks) / (float64(n) / 50)
	if d > 1 {
		return 1
	}
	return d
}
