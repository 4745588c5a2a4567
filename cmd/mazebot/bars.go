package main

import (
	"strings"

	"github.com/gwillem/mazebot/pkg/nav"
)

// barGlyphs maps value/101 to a bar height, so 0..1000 covers all ten.
var barGlyphs = [...]rune{' ', '▁', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

func barGlyph(v int) rune {
	if v < 0 {
		v = 0
	}
	if v > nav.MaxIntensity {
		v = nav.MaxIntensity
	}
	return barGlyphs[v/101]
}

// renderBars draws one glyph per sensor, leftmost sensor first.
func renderBars(r nav.Reading) string {
	var sb strings.Builder
	for _, v := range r {
		sb.WriteRune(barGlyph(v))
	}
	return sb.String()
}
