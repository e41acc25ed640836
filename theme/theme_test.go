package theme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gpl = `GIMP Palette
Name: test
Columns: 2
# comment
  0   0   0	black
200 100  50	brown
`

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.gpl")
	require.NoError(t, os.WriteFile(path, []byte(gpl), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", p.Name)
	assert.Equal(t, []RGB{{0, 0, 0}, {200, 100, 50}}, p.Colors)
}

func TestLoadGPLWithoutColors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gpl")
	require.NoError(t, os.WriteFile(path, []byte("GIMP Palette\nName: none\n"), 0644))

	_, err := LoadGPL(path)
	assert.Error(t, err)
}

func TestParseGPLSkipsMalformedLines(t *testing.T) {
	p, err := ParseGPL(strings.NewReader("GIMP Palette\nColumns: 4\n1 2\n300 0 0 too big\n#00 1 2\n 10 20 30 ok\n"))
	require.NoError(t, err)
	assert.Empty(t, p.Name)
	assert.Equal(t, []RGB{{10, 20, 30}}, p.Colors)
}

func TestLoadDefault(t *testing.T) {
	for _, name := range []string{"", "default"} {
		p, err := Load(name)
		require.NoError(t, err)
		assert.Equal(t, "plasma", p.Name)
	}
}

func TestLookupInterpolates(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {200, 100, 50}}}
	assert.Equal(t, RGB{0, 0, 0}, p.Lookup(-1))
	assert.Equal(t, RGB{200, 100, 50}, p.Lookup(2))
	assert.Equal(t, RGB{100, 50, 25}, p.Lookup(0.5))
}

func TestThemeColors(t *testing.T) {
	th := New(&Palette{Colors: []RGB{{0, 0, 0}, {255, 255, 255}}})
	assert.Equal(t, lipgloss.Color("#000000"), th.Color(RoleBG))
	assert.Equal(t, lipgloss.Color("#ffffff"), th.Color(RoleMeter))
	assert.Equal(t, RGB{127, 127, 127}, th.RGB(RoleAccent))
	assert.Equal(t, '█', th.Symbols.MeterFull)
}
