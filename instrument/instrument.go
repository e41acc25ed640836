// Package instrument defines the capability the mixer drives, plus a few
// self-contained voices used by the demo binary and the tests.
package instrument

import "math"

// Instrument renders audio and reacts to MIDI events. RenderAudio and
// HandleMIDIEvent run on the render path: no blocking, no allocation.
type Instrument interface {
	// SetOutputFormat is called once when the instrument is attached to a
	// track. Returning false rejects the format.
	SetOutputFormat(sampleRate int, stereo bool) bool
	// RenderAudio fills exactly numFrames*channels interleaved samples.
	RenderAudio(buf []float32, numFrames int)
	// HandleMIDIEvent applies a note or control event immediately.
	HandleMIDIEvent(status, data1, data2 uint8)
	// Reset clears voice and envelope state.
	Reset()
}

// MIDI commands and controllers the voices understand
const (
	cmdNoteOff   = 0x80
	cmdNoteOn    = 0x90
	cmdControl   = 0xB0
	cmdPitchBend = 0xE0

	ccVolume        = 7
	ccAllSoundOff   = 120
	ccAllNotesOff   = 123
	pitchBendCenter = 8192
)

// KeyToFreq returns the equal-tempered frequency of a MIDI key (A4 = 440 Hz).
func KeyToFreq(key float64) float64 {
	return 440 * math.Pow(2, (key-69)/12)
}

// Silence renders zeros. It is a placeholder for tracks whose instrument is
// still loading.
type Silence struct {
	channels int
}

func (s *Silence) SetOutputFormat(sampleRate int, stereo bool) bool {
	s.channels = 1
	if stereo {
		s.channels = 2
	}
	return true
}

func (s *Silence) RenderAudio(buf []float32, numFrames int) {
	clear(buf[:numFrames*s.channels])
}

func (s *Silence) HandleMIDIEvent(status, data1, data2 uint8) {}

func (s *Silence) Reset() {}
