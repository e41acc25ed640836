package sequencer

import (
	"slices"
	"sync"

	"go-seqengine/debug"
	"go-seqengine/event"
	"go-seqengine/transport"
)

// Scheduler is the part of the engine a feeder drives.
type Scheduler interface {
	ScheduleEvents(i transport.TrackIndex, events []event.Event) int
	ClearEvents(i transport.TrackIndex, fromFrame event.Frame) error
	ResetTrack(i transport.TrackIndex) error
	Position() event.Frame
	IsPlaying() bool
}

// Feeder loops a pattern on one engine track, planning events ahead of the
// transport. Events the track queue cannot take yet stay pending and are
// offered again on the next fill.
type Feeder struct {
	mu      sync.Mutex
	sched   Scheduler
	track   transport.TrackIndex
	clock   Clock
	pattern Pattern
	muted   bool

	origin  event.Frame // frame of beat 0 of the first loop
	planned int64       // frames after origin already generated
	pending []event.Event
	scratch []event.Event
}

// NewFeeder anchors the pattern at the current transport position.
func NewFeeder(sched Scheduler, track transport.TrackIndex, clock Clock, pattern Pattern) *Feeder {
	f := &Feeder{
		sched:   sched,
		track:   track,
		clock:   clock,
		pattern: pattern,
	}
	f.origin = sched.Position()
	return f
}

// Track returns the engine track the feeder writes to.
func (f *Feeder) Track() transport.TrackIndex {
	return f.track
}

// Pending returns how many generated events wait for queue space.
func (f *Feeder) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Tempo returns the current tempo in BPM.
func (f *Feeder) Tempo() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock.Tempo
}

// FillUntil schedules every event due before frame. It returns how many
// events the engine accepted.
func (f *Feeder) FillUntil(frame event.Frame) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fillUntil(frame)
}

func (f *Feeder) fillUntil(frame event.Frame) int {
	accepted := f.flush()
	if len(f.pending) > 0 {
		return accepted
	}

	// never plan into the past; after a stall resume at the playhead
	now := int64(int32(f.sched.Position() - f.origin))
	f.planned = max(f.planned, now)

	until := int64(int32(frame - f.origin))
	if until <= f.planned || f.muted {
		f.planned = max(f.planned, until)
		return accepted
	}

	f.pending = f.generate(f.pending, f.planned, until)
	f.planned = until
	return accepted + f.flush()
}

// generate appends the pattern events in [from, to) relative to origin,
// sorted by frame with note-offs first on ties so retriggers survive.
func (f *Feeder) generate(dst []event.Event, from, to int64) []event.Event {
	loopFrames := f.clock.BeatsToFrames(f.pattern.Length)
	if loopFrames <= 0 {
		return dst
	}
	evs := f.scratch[:0]
	// start one loop early for note-offs that spill over the loop end
	for loop := max(0, from/loopFrames-1); loop*loopFrames < to; loop++ {
		evs = f.pattern.events(evs, f.clock, loop, from, to)
	}
	slices.SortStableFunc(evs, func(a, b event.Event) int {
		if a.Frame != b.Frame {
			if a.Frame < b.Frame {
				return -1
			}
			return 1
		}
		return int(a.MIDI().Command()) - int(b.MIDI().Command())
	})
	for _, ev := range evs {
		dst = append(dst, ev.At(f.origin+ev.Frame))
	}
	f.scratch = evs
	return dst
}

// flush offers pending events to the engine and keeps what was refused.
func (f *Feeder) flush() int {
	if len(f.pending) == 0 {
		return 0
	}
	n := f.sched.ScheduleEvents(f.track, f.pending)
	f.pending = append(f.pending[:0], f.pending[n:]...)
	if len(f.pending) > 0 {
		debug.LogEvery(20, "feeder", "track %d: %d events waiting for queue space", f.track, len(f.pending))
	}
	return n
}

func (f *Feeder) clear(from event.Frame) {
	if err := f.sched.ClearEvents(f.track, from); err != nil {
		debug.Log("feeder", "clear from %d: %v", from, err)
	}
}

// replan drops everything planned from the playhead on and restarts
// generation there. Keys of the old pattern get a note-off at the playhead
// since their scheduled note-offs are gone.
func (f *Feeder) replan(old Pattern) {
	now := f.sched.Position()
	f.clear(now)
	f.pending = f.pending[:0]
	off := event.NoteOff | old.Channel&0x0F
	for _, key := range old.Keys() {
		f.pending = append(f.pending, event.NewMIDI(now, off, key, 0))
	}
	f.planned = int64(int32(now - f.origin))
}

// SetTempo changes the tempo, keeping the current beat position.
func (f *Feeder) SetTempo(bpm float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bpm = ClampTempo(bpm)
	if bpm == f.clock.Tempo {
		return
	}
	now := f.sched.Position()
	beat := f.clock.FramesToBeats(int64(int32(now - f.origin)))
	f.clock.Tempo = bpm
	f.origin = now - event.Frame(f.clock.BeatsToFrames(beat))
	f.replan(f.pattern)
	debug.Log("feeder", "track %d tempo %.1f", f.track, bpm)
}

// SetPattern swaps the pattern from the playhead on.
func (f *Feeder) SetPattern(p Pattern) {
	f.mu.Lock()
	defer f.mu.Unlock()

	old := f.pattern
	f.pattern = p
	f.replan(old)
}

// SetMuted stops or resumes generating new notes. Notes already queued
// still play.
func (f *Feeder) SetMuted(muted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = muted
}

// Muted reports whether generation is stopped.
func (f *Feeder) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

// Start re-anchors the pattern at the current transport position and
// discards anything planned.
func (f *Feeder) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.clear(0)
	f.origin = f.sched.Position()
	f.planned = 0
	f.pending = f.pending[:0]
}

// Stop discards everything queued and silences the track.
func (f *Feeder) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.clear(0)
	if err := f.sched.ResetTrack(f.track); err != nil {
		debug.Log("feeder", "stop: %v", err)
	}
	f.pending = f.pending[:0]
	f.planned = int64(int32(f.sched.Position() - f.origin))
}
