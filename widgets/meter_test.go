package widgets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeterCells(t *testing.T) {
	assert.Equal(t, 0, MeterCells(0, 2, 10))
	assert.Equal(t, 5, MeterCells(1, 2, 10))
	assert.Equal(t, 10, MeterCells(2, 2, 10))
	assert.Equal(t, 10, MeterCells(5, 2, 10), "clamped to width")
	assert.Equal(t, 0, MeterCells(-1, 2, 10))
	assert.Equal(t, 0, MeterCells(1, 0, 10))
}

func TestRenderMeterWidth(t *testing.T) {
	out := RenderMeter(0.5, 1, 8, '#', '.', [3]uint8{1, 2, 3}, [3]uint8{255, 0, 0})
	assert.Equal(t, 4, strings.Count(out, "#"))
	assert.True(t, strings.HasSuffix(out, "...."))
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{{
		Title: "Transport",
		Keys:  []KeyBinding{{Key: "p", Desc: "play/pause"}},
	}})
	assert.Equal(t, "Transport\n  p            play/pause", out)
}
