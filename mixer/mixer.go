// Package mixer sums the output of every registered track into one
// interleaved buffer, driving the transport scheduler once per track per
// tick. The inputs are not owned by the mixer and must outlive their
// registration.
package mixer

import (
	"math"
	"sync/atomic"

	"go-seqengine/event"
	"go-seqengine/instrument"
	"go-seqengine/transport"
)

// DefaultScratchSamples is the size of the per-track mixing buffer in samples.
const DefaultScratchSamples = 192 * 10

// Options configures a Mixer.
type Options struct {
	SampleRate     int
	Channels       int // 1 or 2
	ScratchSamples int
	Transport      transport.Options
}

type track struct {
	instrument instrument.Instrument
	gain       atomic.Uint32 // float32 bits
}

func (t *track) level() float32 {
	return math.Float32frombits(t.gain.Load())
}

func (t *track) setLevel(level float32) {
	t.gain.Store(math.Float32bits(level))
}

// Mixer implements transport.Renderer over a registry of instruments.
type Mixer struct {
	sched      *transport.Scheduler
	tracks     []atomic.Pointer[track]
	scratch    []float32
	channels   int
	sampleRate int
	tickFrames int
}

// New builds a mixer and its scheduler.
func New(opts Options) *Mixer {
	if opts.Channels != 2 {
		opts.Channels = 1
	}
	if opts.ScratchSamples < opts.Channels {
		opts.ScratchSamples = DefaultScratchSamples
	}
	m := &Mixer{
		channels:   opts.Channels,
		sampleRate: opts.SampleRate,
		scratch:    make([]float32, opts.ScratchSamples),
		tickFrames: opts.ScratchSamples / opts.Channels,
	}
	m.sched = transport.New(m, opts.Transport)
	m.tracks = make([]atomic.Pointer[track], m.sched.Options().MaxTracks)
	return m
}

// Scheduler exposes the transport core for control-path calls.
func (m *Mixer) Scheduler() *transport.Scheduler {
	return m.sched
}

// Channels returns the interleaved channel count.
func (m *Mixer) Channels() int {
	return m.channels
}

// SampleRate returns the output sample rate.
func (m *Mixer) SampleRate() int {
	return m.sampleRate
}

// TickFrames returns the largest number of frames rendered as one tick.
func (m *Mixer) TickFrames() int {
	return m.tickFrames
}

func (m *Mixer) track(i transport.TrackIndex) *track {
	if i < 0 || int(i) >= len(m.tracks) {
		return nil
	}
	return m.tracks[i].Load()
}

// AddTrack attaches inst at unity gain. It returns NoTrack when the
// registry is full or the instrument rejects the output format.
func (m *Mixer) AddTrack(inst instrument.Instrument) transport.TrackIndex {
	if !inst.SetOutputFormat(m.sampleRate, m.channels == 2) {
		return transport.NoTrack
	}
	i := m.sched.AddTrack()
	if i == transport.NoTrack {
		return i
	}
	t := &track{instrument: inst}
	t.setLevel(1)
	m.tracks[i].Store(t)
	return i
}

// RemoveTrack unregisters the track. Its contribution stops on the next tick.
func (m *Mixer) RemoveTrack(i transport.TrackIndex) {
	m.sched.RemoveTrack(i)
}

// ResetTrack silences the track and resets its instrument on the next tick.
func (m *Mixer) ResetTrack(i transport.TrackIndex) {
	m.sched.ResetTrack(i)
}

// Track returns the instrument attached to i.
func (m *Mixer) Track(i transport.TrackIndex) (instrument.Instrument, bool) {
	t := m.track(i)
	if t == nil {
		return nil, false
	}
	return t.instrument, true
}

// SetLevel sets the linear gain of a track. Unknown tracks are ignored.
func (m *Mixer) SetLevel(i transport.TrackIndex, level float32) {
	if t := m.track(i); t != nil {
		t.setLevel(level)
	}
}

// Level returns the linear gain of a track, 0 for an unknown track.
func (m *Mixer) Level(i transport.TrackIndex) float32 {
	if t := m.track(i); t != nil {
		return t.level()
	}
	return 0
}

// RenderAudio fills out with numFrames interleaved frames. Output is the
// plain sum of gain-scaled tracks; nothing is clipped.
func (m *Mixer) RenderAudio(out []float32, numFrames int) {
	out = out[:numFrames*m.channels]
	clear(out)

	for done := 0; done < numFrames; {
		n := min(numFrames-done, m.tickFrames)
		m.renderTick(out[done*m.channels:(done+n)*m.channels], uint32(n))
		done += n
	}
}

func (m *Mixer) renderTick(out []float32, numFrames uint32) {
	start := m.sched.Position()
	scratch := m.scratch[:len(out)]

	for i := range m.tracks {
		t := m.tracks[i].Load()
		if t == nil {
			continue
		}
		clear(scratch)
		m.sched.HandleFrames(transport.TrackIndex(i), numFrames)

		// scratch already carries the gain of each sub-range
		for j := range out {
			out[j] += scratch[j]
		}
	}
	m.sched.CompleteTick(start, numFrames)
}

// RenderRange implements transport.Renderer. The sub-range is scaled by the
// gain in effect now, so a volume event changes only the frames after it.
func (m *Mixer) RenderRange(i transport.TrackIndex, offsetFrame, numFrames uint32) {
	if numFrames == 0 {
		return
	}
	t := m.track(i)
	if t == nil {
		return
	}
	from := int(offsetFrame) * m.channels
	to := from + int(numFrames)*m.channels
	buf := m.scratch[from:to]
	t.instrument.RenderAudio(buf, int(numFrames))
	if gain := t.level(); gain != 1 {
		for j := range buf {
			buf[j] *= gain
		}
	}
}

// ApplyEvent implements transport.Renderer. Volume events set the track
// gain; MIDI events go to the instrument.
func (m *Mixer) ApplyEvent(i transport.TrackIndex, ev event.Event, offsetFrame uint32) {
	t := m.track(i)
	if t == nil {
		return
	}
	switch ev.Kind {
	case event.KindVolume:
		t.setLevel(ev.Volume().Level)
	case event.KindMIDI:
		d := ev.MIDI()
		t.instrument.HandleMIDIEvent(d.Status, d.Data1, d.Data2)
	}
}

// OnRemoveTrack implements transport.Renderer.
func (m *Mixer) OnRemoveTrack(i transport.TrackIndex) {
	if m.track(i) != nil {
		m.tracks[i].Store(nil)
	}
}

// OnResetTrack implements transport.Renderer.
func (m *Mixer) OnResetTrack(i transport.TrackIndex) {
	if t := m.track(i); t != nil {
		t.instrument.Reset()
	}
}
