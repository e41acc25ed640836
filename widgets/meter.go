package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// MeterCells returns how many of width cells a level fills, for a meter
// whose full scale is scale.
func MeterCells(level, scale float32, width int) int {
	if scale <= 0 || level <= 0 || width <= 0 {
		return 0
	}
	n := int(level / scale * float32(width))
	return min(n, width)
}

// RenderMeter renders a horizontal bar for level in [0, scale]. Values
// above scale draw a full bar in the over color.
func RenderMeter(level, scale float32, width int, full, empty rune, color, over [3]uint8) string {
	n := MeterCells(level, scale, width)
	fill := color
	if level > scale {
		fill = over
	}
	bar := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(fill))).
		Render(strings.Repeat(string(full), n))
	return bar + strings.Repeat(string(empty), width-n)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
