// Package transport holds the frame-accurate scheduling core: one event
// queue per track, the shared play/pause state and playback position, and
// the per-tick algorithm that slices each render buffer at event boundaries.
//
// How audio is produced and how an event reaches an instrument is left to a
// Renderer, so the algorithm exists once regardless of the output backend.
package transport

import (
	"sync/atomic"
	"time"

	"go-seqengine/event"
	"go-seqengine/queue"
)

// TrackIndex is a stable handle for a track, reused only after removal.
type TrackIndex int32

// NoTrack is returned when no slot is available.
const NoTrack TrackIndex = -1

// Defaults
const (
	DefaultLateTolerance = 1024
	DefaultMaxTracks     = 128
)

// Renderer is the backend strategy driven by the scheduler. RenderRange and
// ApplyEvent are called on the render path and must not block or allocate.
type Renderer interface {
	// RenderRange renders numFrames of the track starting offsetFrame frames
	// into the current tick.
	RenderRange(track TrackIndex, offsetFrame, numFrames uint32)
	// ApplyEvent applies ev to the track at offsetFrame within the tick.
	ApplyEvent(track TrackIndex, ev event.Event, offsetFrame uint32)
	// OnRemoveTrack is called after the scheduler forgets a track.
	OnRemoveTrack(track TrackIndex)
	// OnResetTrack clears instrument state. Called on the render path.
	OnResetTrack(track TrackIndex)
}

// Options configures a Scheduler. Zero values select the defaults.
type Options struct {
	QueueCapacity int
	LateTolerance uint32
	MaxTracks     int
}

func (o Options) withDefaults() Options {
	if o.QueueCapacity == 0 {
		o.QueueCapacity = queue.DefaultCapacity
	}
	if o.LateTolerance == 0 {
		o.LateTolerance = DefaultLateTolerance
	}
	if o.MaxTracks == 0 {
		o.MaxTracks = DefaultMaxTracks
	}
	return o
}

// track is the scheduler's per-track state. The pointer is published
// atomically; queue, now and resetRequested are shared between the two
// paths, rendered is owned by the render path.
type track struct {
	queue          *queue.Queue
	now            *queue.Queue // events to apply at offset 0 of the next call
	resetRequested atomic.Bool
	dropped        atomic.Uint64
	rendered       bool
}

// Scheduler is the transport core.
type Scheduler struct {
	renderer      Renderer
	opts          Options
	tracks        []atomic.Pointer[track]
	playing       atomic.Bool
	position      atomic.Uint32
	tickCompleted bool // render path: barrier fired since the last CompleteTick
	allNotesOff   [128]event.Event
}

// New creates a scheduler that drives r.
func New(r Renderer, opts Options) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{
		renderer:    r,
		opts:        opts,
		tracks:      make([]atomic.Pointer[track], opts.MaxTracks),
		allNotesOff: event.AllNotesOff(0),
	}
}

// Options returns the effective options.
func (s *Scheduler) Options() Options {
	return s.opts
}

func (s *Scheduler) track(i TrackIndex) *track {
	if i < 0 || int(i) >= len(s.tracks) {
		return nil
	}
	return s.tracks[i].Load()
}

// AddTrack registers a track in the lowest free slot.
func (s *Scheduler) AddTrack() TrackIndex {
	for i := range s.tracks {
		if s.tracks[i].Load() != nil {
			continue
		}
		s.tracks[i].Store(&track{
			queue: queue.New(s.opts.QueueCapacity),
			now:   queue.New(s.opts.QueueCapacity),
		})
		return TrackIndex(i)
	}
	return NoTrack
}

// RemoveTrack forgets the track and notifies the renderer.
func (s *Scheduler) RemoveTrack(i TrackIndex) bool {
	if s.track(i) == nil {
		return false
	}
	s.tracks[i].Store(nil)
	s.renderer.OnRemoveTrack(i)
	return true
}

// HasTrack reports whether i is registered.
func (s *Scheduler) HasTrack(i TrackIndex) bool {
	return s.track(i) != nil
}

// Tracks returns the registered track indices in ascending order.
func (s *Scheduler) Tracks() []TrackIndex {
	var out []TrackIndex
	for i := range s.tracks {
		if s.tracks[i].Load() != nil {
			out = append(out, TrackIndex(i))
		}
	}
	return out
}

// ScheduleEvents queues events for the track and returns how many were
// accepted. Events must be sorted by frame and come after anything already
// queued. The caller handles partial acceptance.
func (s *Scheduler) ScheduleEvents(i TrackIndex, events []event.Event) int {
	t := s.track(i)
	if t == nil {
		return 0
	}
	return t.queue.Add(events)
}

// HandleEventsNow bypasses the schedule: the events are applied at offset 0
// at the start of the next render call for the track, playing or not. It
// returns how many were accepted.
func (s *Scheduler) HandleEventsNow(i TrackIndex, events []event.Event) int {
	t := s.track(i)
	if t == nil {
		return 0
	}
	return t.now.Add(events)
}

// ClearEvents drops queued events at or after fromFrame.
func (s *Scheduler) ClearEvents(i TrackIndex, fromFrame event.Frame) bool {
	t := s.track(i)
	if t == nil {
		return false
	}
	t.queue.ClearAfter(fromFrame)
	return true
}

// ResetTrack silences every note on the track and asks the renderer to
// reset instrument state.
func (s *Scheduler) ResetTrack(i TrackIndex) bool {
	t := s.track(i)
	if t == nil {
		return false
	}
	t.resetRequested.Store(true)
	return true
}

// BufferAvailableCount returns the free queue slots, 0 for an unknown track.
func (s *Scheduler) BufferAvailableCount(i TrackIndex) int {
	t := s.track(i)
	if t == nil {
		return 0
	}
	return t.queue.AvailableCount()
}

// Dropped returns how many events the track discarded as stale.
func (s *Scheduler) Dropped(i TrackIndex) uint64 {
	t := s.track(i)
	if t == nil {
		return 0
	}
	return t.dropped.Load()
}

// Play starts the transport. Calling it while playing is a no-op.
func (s *Scheduler) Play() {
	s.playing.Store(true)
}

// Pause stops the transport. Calling it while paused is a no-op.
func (s *Scheduler) Pause() {
	s.playing.Store(false)
}

// IsPlaying reports the transport state.
func (s *Scheduler) IsPlaying() bool {
	return s.playing.Load()
}

// Position returns the absolute frame of the next tick.
func (s *Scheduler) Position() event.Frame {
	return s.position.Load()
}

// SetPosition seeks. A seek made while a tick is rendering wins over the
// tick's own advance.
func (s *Scheduler) SetPosition(frame event.Frame) {
	s.position.Store(frame)
}

// LastRenderTimeUs returns the wall clock in microseconds at call time.
func (s *Scheduler) LastRenderTimeUs() uint64 {
	return uint64(time.Now().UnixMicro())
}

// drainNow applies pending immediate events and reset requests. A reset
// applies whatever was already waiting, then a note-off for every key, then
// the instrument reset. The note-offs bypass the now queue so a small
// QueueCapacity cannot truncate them.
func (s *Scheduler) drainNow(i TrackIndex, t *track) {
	if t.resetRequested.Load() {
		s.applyNow(i, t)
		for _, ev := range &s.allNotesOff {
			s.renderer.ApplyEvent(i, ev, 0)
		}
		t.resetRequested.Store(false)
		s.renderer.OnResetTrack(i)
	}
	s.applyNow(i, t)
}

func (s *Scheduler) applyNow(i TrackIndex, t *track) {
	for {
		ev, ok := t.now.Peek()
		if !ok {
			return
		}
		s.renderer.ApplyEvent(i, ev, 0)
		t.now.RemoveTop()
	}
}

// HandleFrames advances one track by numFrames. It runs on the render path
// once per track per tick.
func (s *Scheduler) HandleFrames(i TrackIndex, numFrames uint32) {
	t := s.track(i)
	if t == nil {
		return
	}
	s.drainNow(i, t)
	if !s.playing.Load() {
		return
	}

	startFrame := s.position.Load()
	var rendered uint32

	for {
		ev, ok := t.queue.Peek()
		if !ok {
			break
		}

		// signed distance so that ordering survives position wraparound;
		// an event more than 2^31 frames ahead therefore counts as past
		delta := int32(ev.Frame - startFrame)
		var offset uint32
		if delta < 0 {
			if uint32(-int64(delta)) > s.opts.LateTolerance {
				t.queue.RemoveTop()
				t.dropped.Add(1)
				continue
			}
			offset = 0
		} else {
			offset = uint32(delta)
		}
		if offset >= numFrames {
			break
		}
		if offset < rendered {
			// out of order; apply at the current boundary
			offset = rendered
		}

		s.renderer.RenderRange(i, rendered, offset-rendered)
		rendered = offset
		s.renderer.ApplyEvent(i, ev, rendered)
		t.queue.RemoveTop()
	}

	s.renderer.RenderRange(i, rendered, numFrames-rendered)

	t.rendered = true
	s.completeIfAllRendered(startFrame, numFrames)
}

// completeIfAllRendered is the end-of-tick barrier: once every registered
// track has rendered, the position advances unless it was moved meanwhile.
func (s *Scheduler) completeIfAllRendered(startFrame event.Frame, numFrames uint32) {
	for j := range s.tracks {
		if t := s.tracks[j].Load(); t != nil && !t.rendered {
			return
		}
	}
	s.advance(startFrame, numFrames)
}

func (s *Scheduler) advance(startFrame event.Frame, numFrames uint32) {
	s.position.CompareAndSwap(startFrame, startFrame+numFrames)
	for j := range s.tracks {
		if t := s.tracks[j].Load(); t != nil {
			t.rendered = false
		}
	}
	s.tickCompleted = true
}

// CompleteTick closes a render pass that started at startFrame. When the
// barrier did not fire during the pass, because the set of tracks changed
// mid-pass or there are no tracks, it advances here instead. It returns
// whether the barrier had already fired.
func (s *Scheduler) CompleteTick(startFrame event.Frame, numFrames uint32) bool {
	fired := s.tickCompleted
	s.tickCompleted = false
	if fired || !s.playing.Load() {
		return fired
	}
	s.advance(startFrame, numFrames)
	s.tickCompleted = false
	return false
}
