package sequencer

import "math"

// Tempo limits
const (
	MinTempo = 20
	MaxTempo = 300
)

// Clock converts between beats and frames at a fixed tempo.
type Clock struct {
	SampleRate int
	Tempo      float64 // BPM
}

// ClampTempo keeps bpm within the supported range.
func ClampTempo(bpm float64) float64 {
	return max(MinTempo, min(MaxTempo, bpm))
}

// FramesPerBeat returns the length of one quarter note in frames.
func (c Clock) FramesPerBeat() float64 {
	return float64(c.SampleRate) * 60 / c.Tempo
}

// BeatsToFrames converts a beat offset to a frame offset, rounded to the
// nearest frame.
func (c Clock) BeatsToFrames(beats float64) int64 {
	return int64(math.Round(beats * c.FramesPerBeat()))
}

// FramesToBeats converts a frame offset to beats.
func (c Clock) FramesToBeats(frames int64) float64 {
	return float64(frames) / c.FramesPerBeat()
}

// MsToFrames converts milliseconds to frames.
func (c Clock) MsToFrames(ms int) int64 {
	return int64(ms) * int64(c.SampleRate) / 1000
}
