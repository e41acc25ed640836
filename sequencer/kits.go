package sequencer

// Slot is one of the 16 drum voices of a kit
type Slot int

const (
	Kick Slot = iota
	Snare
	ClosedHH
	OpenHH
	LowTom
	MidTom
	HighTom
	Crash
	Ride
	Clap
	Rimshot
	Cowbell
	Clave
	Maracas
	LowConga
	HighConga
)

// DrumKit maps 16 drum slots to MIDI notes
type DrumKit struct {
	Name  string
	Notes [16]uint8
}

// Note returns the key for a slot, 0 for a slot outside the kit.
func (k DrumKit) Note(s Slot) uint8 {
	if s < 0 || int(s) >= len(k.Notes) {
		return 0
	}
	return k.Notes[s]
}

// Kits contains all available drum kit mappings
var Kits = map[string]DrumKit{
	"gm": {
		Name:  "General MIDI",
		Notes: [16]uint8{36, 38, 42, 46, 41, 43, 45, 49, 51, 39, 37, 56, 75, 70, 64, 63},
	},
	"rd8": {
		Name: "Behringer RD-8",
		// RD-8 snare is 40, not 38; toms sit higher than GM
		Notes: [16]uint8{36, 40, 42, 46, 45, 48, 50, 49, 51, 39, 37, 56, 75, 70, 64, 63},
	},
	"tr8s": {
		Name:  "Roland TR-8S",
		Notes: [16]uint8{36, 38, 42, 46, 41, 43, 45, 49, 51, 39, 37, 56, 75, 70, 62, 63},
	},
	"er1": {
		Name: "Korg ER-1",
		// slots past the clap have no ER-1 voice and keep GM placeholders
		Notes: [16]uint8{36, 38, 42, 46, 40, 41, 43, 49, 45, 39, 37, 56, 75, 70, 64, 63},
	},
}

// KitNames returns the list of available kit names
func KitNames() []string {
	return []string{"gm", "rd8", "tr8s", "er1"}
}

// GetKit returns a kit by name, defaulting to GM if not found
func GetKit(name string) DrumKit {
	if kit, ok := Kits[name]; ok {
		return kit
	}
	return Kits[DefaultKit]
}

// DefaultKit is the default kit name
const DefaultKit = "gm"
