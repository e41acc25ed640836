package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Level meters
	MeterFull  rune // █ filled cell
	MeterEmpty rune // · empty cell

	// Track list
	Selected rune // ▶ selected track
	Playing  rune // ● transport running
	Paused   rune // ‖ transport paused
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			MeterFull:  '█',
			MeterEmpty: '·',

			Selected: '▶',
			Playing:  '●',
			Paused:   '‖',
		},
	}
}

// Role is a position on the palette gradient (0-1).
type Role float64

const (
	RoleBG      Role = 0.0
	RoleMuted   Role = 0.2 // help, inactive tracks
	RoleFG      Role = 0.4
	RoleAccent  Role = 0.5 // header
	RoleCursor  Role = 0.6 // selected track
	RoleWarning Role = 0.8 // late/full counters, meter over scale
	RoleMeter   Role = 1.0
)

// Color returns the lipgloss color of a role.
func (t *Theme) Color(r Role) lipgloss.Color {
	c := t.RGB(r)
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}

// RGB returns the raw color of a role.
func (t *Theme) RGB(r Role) RGB {
	return t.Palette.Lookup(float64(r))
}

// Style returns a foreground style in the role's color.
func (t *Theme) Style(r Role) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Color(r))
}
