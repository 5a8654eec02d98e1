package ui

import "github.com/fatih/color"

// ledAttr returns the terminal color attribute matching an LedColor,
// for rendering a Frame to a terminal as a read-only operator aid
// (a test harness or remote session with no physical LEDs to look at).
func ledAttr(c LedColor) color.Attribute {
	switch c {
	case LedGreen:
		return color.FgGreen
	case LedYellow:
		return color.FgYellow
	case LedRed:
		return color.FgRed
	default:
		return color.FgHiBlack
	}
}

// Render returns a one-line ANSI-colored rendition of f: one glyph per
// channel, lit (●) or unlit (○) depending on SliderLit, colored by LED,
// and bold while that channel's switch is pressed. It never mutates f;
// it only formats it, so it is safe to call from any goroutine after
// Update returns.
func Render(f Frame) string {
	out := make([]byte, 0, NumChannels*8)
	for i := 0; i < NumChannels; i++ {
		glyph := "○"
		if f.SliderLit[i] {
			glyph = "●"
		}
		c := color.New(ledAttr(f.LED[i]))
		if f.Pressed[i] {
			c = c.Add(color.Bold)
		}
		out = append(out, []byte(c.Sprint(glyph))...)
		out = append(out, ' ')
	}
	return string(out)
}
