package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDensity(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0},
		{"plain prose", "Consumers maximise utility subject to a budget constraint.", 0},
		{"saturated", `$\alpha$`, 1},
		{"partial", "$" + strings.Repeat("x", 99), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Density(tt.text), 1e-9)
		})
	}
}

func TestDensity_Bounds(t *testing.T) {
	inputs := []string{
		"", "$", `\\\\`, "x", strings.Repeat(`$\frac{a}{b}$ `, 40),
		strings.Repeat("text ", 1000), "均衡 $p^*$ 与 \\lambda",
	}
	for _, in := range inputs {
		d := Density(in)
		assert.GreaterOrEqual(t, d, 0.0, in)
		assert.LessOrEqual(t, d, 1.0, in)
	}
}
