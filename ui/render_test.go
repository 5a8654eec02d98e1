package ui

import (
	"strings"
	"testing"
)

func TestRenderProducesOneGlyphPerChannel(t *testing.T) {
	var f Frame
	f.SliderLit[0] = true
	f.LED[0] = LedGreen
	f.Pressed[2] = true

	out := Render(f)
	if got := strings.Count(out, "●"); got != 1 {
		t.Fatalf("expected exactly 1 lit glyph, got %d in %q", got, out)
	}
	if got := strings.Count(out, "○"); got != NumChannels-1 {
		t.Fatalf("expected %d unlit glyphs, got %d in %q", NumChannels-1, got, out)
	}
}
