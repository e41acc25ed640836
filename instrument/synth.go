package instrument

import "math"

// Waveform selects the oscillator shape of a Synth.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveTriangle
	WaveSaw
	WaveSquare
)

// DefaultPolyphony is the voice count of a Synth built with zero Polyphony.
const DefaultPolyphony = 16

type voice struct {
	active   bool
	released bool
	key      uint8
	gain     float32 // velocity / 127
	phase    float64 // 0..1
	env      float32
}

// Synth is a small polyphonic oscillator with a linear attack/release
// envelope. Voices are preallocated; the oldest voice is stolen when all
// are busy.
type Synth struct {
	Wave      Waveform
	Attack    float64 // seconds
	Release   float64 // seconds
	Polyphony int

	sampleRate float64
	channels   int
	voices     []voice
	age        []uint64
	clock      uint64
	volume     float32 // CC7, 0..1
	bend       float64 // semitones
	bendRange  float64
	attackInc  float32
	releaseDec float32
}

// NewSynth returns a synth with sensible envelope defaults.
func NewSynth(wave Waveform) *Synth {
	return &Synth{
		Wave:    wave,
		Attack:  0.005,
		Release: 0.08,
	}
}

func (s *Synth) SetOutputFormat(sampleRate int, stereo bool) bool {
	if sampleRate <= 0 {
		return false
	}
	if s.Polyphony <= 0 {
		s.Polyphony = DefaultPolyphony
	}
	s.sampleRate = float64(sampleRate)
	s.channels = 1
	if stereo {
		s.channels = 2
	}
	s.voices = make([]voice, s.Polyphony)
	s.age = make([]uint64, s.Polyphony)
	s.volume = 1
	s.bendRange = 2
	s.attackInc = envStep(s.Attack, s.sampleRate)
	s.releaseDec = envStep(s.Release, s.sampleRate)
	return true
}

func envStep(seconds, sampleRate float64) float32 {
	if seconds <= 0 {
		return 1
	}
	return float32(1 / (seconds * sampleRate))
}

func (s *Synth) HandleMIDIEvent(status, data1, data2 uint8) {
	switch status & 0xF0 {
	case cmdNoteOn:
		if data2 == 0 {
			s.noteOff(data1)
			return
		}
		s.noteOn(data1, data2)
	case cmdNoteOff:
		s.noteOff(data1)
	case cmdControl:
		switch data1 {
		case ccVolume:
			s.volume = float32(data2) / 127
		case ccAllSoundOff:
			s.Reset()
		case ccAllNotesOff:
			for i := range s.voices {
				s.voices[i].released = true
			}
		}
	case cmdPitchBend:
		v := int(data1) | int(data2)<<7
		s.bend = float64(v-pitchBendCenter) / pitchBendCenter * s.bendRange
	}
}

func (s *Synth) noteOn(key, velocity uint8) {
	slot := -1
	for i := range s.voices {
		if !s.voices[i].active {
			slot = i
			break
		}
	}
	if slot < 0 {
		// steal the oldest
		slot = 0
		for i := range s.age {
			if s.age[i] < s.age[slot] {
				slot = i
			}
		}
	}
	s.clock++
	s.age[slot] = s.clock
	s.voices[slot] = voice{active: true, key: key, gain: float32(velocity) / 127}
}

func (s *Synth) noteOff(key uint8) {
	for i := range s.voices {
		if s.voices[i].active && s.voices[i].key == key {
			s.voices[i].released = true
		}
	}
}

// ActiveVoices returns the number of sounding voices.
func (s *Synth) ActiveVoices() int {
	n := 0
	for i := range s.voices {
		if s.voices[i].active {
			n++
		}
	}
	return n
}

func (s *Synth) RenderAudio(buf []float32, numFrames int) {
	out := buf[:numFrames*s.channels]
	clear(out)

	for v := range s.voices {
		vc := &s.voices[v]
		if !vc.active {
			continue
		}
		inc := KeyToFreq(float64(vc.key)+s.bend) / s.sampleRate
		for f := 0; f < numFrames; f++ {
			if vc.released {
				vc.env -= s.releaseDec
				if vc.env <= 0 {
					vc.active = false
					break
				}
			} else if vc.env < 1 {
				vc.env = min(vc.env+s.attackInc, 1)
			}

			sample := oscillate(s.Wave, vc.phase) * vc.gain * vc.env * s.volume
			vc.phase += inc
			if vc.phase >= 1 {
				vc.phase -= math.Floor(vc.phase)
			}

			for c := 0; c < s.channels; c++ {
				out[f*s.channels+c] += sample
			}
		}
	}
}

func oscillate(w Waveform, phase float64) float32 {
	switch w {
	case WaveTriangle:
		return float32(2*math.Abs(2*phase-1) - 1)
	case WaveSaw:
		return float32(2*phase - 1)
	case WaveSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	default:
		return float32(math.Sin(2 * math.Pi * phase))
	}
}

func (s *Synth) Reset() {
	for i := range s.voices {
		s.voices[i] = voice{}
	}
	s.bend = 0
}
