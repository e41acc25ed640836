// Package engine is the handle callers own instead of a process-wide
// singleton. It serialises the control path, which is the producer side of
// every track queue, and exposes Render for the audio callback.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go-seqengine/config"
	"go-seqengine/debug"
	"go-seqengine/event"
	"go-seqengine/instrument"
	"go-seqengine/mixer"
	"go-seqengine/transport"
)

var (
	// ErrEngineNotReady is the panic value for calls on a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrNoSlot means every track slot is taken.
	ErrNoSlot = errors.New("no free track slot")
	// ErrFormatRejected means the instrument refused the output format.
	ErrFormatRejected = errors.New("instrument rejected output format")
	// ErrUnknownTrack means the index is not registered.
	ErrUnknownTrack = errors.New("unknown track")
)

// TrackStats is a status snapshot of one track.
type TrackStats struct {
	Track     transport.TrackIndex
	Level     float32
	Available int    // free queue slots
	Dropped   uint64 // stale events discarded on the render path
	Overflows uint64 // batches only partially accepted
}

// AddTrackResult is delivered by AddTrackAsync.
type AddTrackResult struct {
	Track transport.TrackIndex
	Err   error
}

// Engine owns a mixer and its transport.
type Engine struct {
	mu        sync.Mutex
	cfg       config.Engine
	mix       *mixer.Mixer
	sched     *transport.Scheduler
	closed    atomic.Bool
	overflows map[transport.TrackIndex]uint64
}

// New validates cfg and builds an engine. The transport starts paused.
func New(cfg config.Engine) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	mix := mixer.New(mixer.Options{
		SampleRate:     cfg.SampleRate,
		Channels:       cfg.Channels,
		ScratchSamples: cfg.ScratchSamples,
		Transport: transport.Options{
			QueueCapacity: cfg.QueueCapacity,
			LateTolerance: cfg.LateTolerance,
			MaxTracks:     cfg.MaxTracks,
		},
	})
	e := &Engine{
		cfg:       cfg,
		mix:       mix,
		sched:     mix.Scheduler(),
		overflows: make(map[transport.TrackIndex]uint64),
	}
	opts := e.sched.Options()
	debug.Log("engine", "created %dHz x%d, %d tracks, queue %d, tolerance %d",
		cfg.SampleRate, mix.Channels(), opts.MaxTracks, opts.QueueCapacity, opts.LateTolerance)
	return e, nil
}

func (e *Engine) ready() {
	if e == nil || e.closed.Load() {
		panic(ErrEngineNotReady)
	}
}

// lock takes the control mutex. Closed is checked again under the mutex
// since a caller may have waited behind Close.
func (e *Engine) lock() func() {
	e.ready()
	e.mu.Lock()
	if e.closed.Load() {
		e.mu.Unlock()
		panic(ErrEngineNotReady)
	}
	return e.mu.Unlock
}

// Config returns the settings the engine was built with.
func (e *Engine) Config() config.Engine {
	e.ready()
	return e.cfg
}

// Channels returns the interleaved channel count of Render output.
func (e *Engine) Channels() int {
	e.ready()
	return e.mix.Channels()
}

// SampleRate returns the output sample rate.
func (e *Engine) SampleRate() int {
	e.ready()
	return e.mix.SampleRate()
}

// AddTrack registers inst in the lowest free slot at unity gain.
func (e *Engine) AddTrack(inst instrument.Instrument) (transport.TrackIndex, error) {
	defer e.lock()()
	return e.addTrack(inst)
}

func (e *Engine) addTrack(inst instrument.Instrument) (transport.TrackIndex, error) {
	if len(e.sched.Tracks()) >= e.sched.Options().MaxTracks {
		return transport.NoTrack, ErrNoSlot
	}
	i := e.mix.AddTrack(inst)
	if i == transport.NoTrack {
		return transport.NoTrack, fmt.Errorf("%T: %w", inst, ErrFormatRejected)
	}
	delete(e.overflows, i)
	debug.Log("engine", "track %d added (%T)", i, inst)
	return i, nil
}

// AddTrackAsync builds an instrument off the caller's goroutine, for
// instance to load sample data, and registers it. The channel receives
// exactly one result.
func (e *Engine) AddTrackAsync(ctx context.Context, build func(context.Context) (instrument.Instrument, error)) <-chan AddTrackResult {
	e.ready()
	out := make(chan AddTrackResult, 1)
	go func() {
		defer close(out)
		inst, err := build(ctx)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			out <- AddTrackResult{Track: transport.NoTrack, Err: err}
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed.Load() {
			out <- AddTrackResult{Track: transport.NoTrack, Err: ErrEngineNotReady}
			return
		}
		i, err := e.addTrack(inst)
		out <- AddTrackResult{Track: i, Err: err}
	}()
	return out
}

// RemoveTrack unregisters the track. Its audio stops on the next tick.
func (e *Engine) RemoveTrack(i transport.TrackIndex) error {
	defer e.lock()()
	if !e.sched.RemoveTrack(i) {
		return fmt.Errorf("remove %d: %w", i, ErrUnknownTrack)
	}
	delete(e.overflows, i)
	debug.Log("engine", "track %d removed", i)
	return nil
}

// ResetTrack sends note-off for every key and resets the instrument at the
// start of the next render call.
func (e *Engine) ResetTrack(i transport.TrackIndex) error {
	defer e.lock()()
	if !e.sched.ResetTrack(i) {
		return fmt.Errorf("reset %d: %w", i, ErrUnknownTrack)
	}
	return nil
}

// ScheduleEvents queues frame-ordered events and returns how many were
// accepted. Events past the free capacity are not queued; the caller keeps
// them and retries.
func (e *Engine) ScheduleEvents(i transport.TrackIndex, events []event.Event) int {
	defer e.lock()()
	return e.schedule(i, events)
}

func (e *Engine) schedule(i transport.TrackIndex, events []event.Event) int {
	n := e.sched.ScheduleEvents(i, events)
	if n < len(events) && e.sched.HasTrack(i) {
		e.overflows[i]++
		l := debug.Logger()
		l.Warn().
			Str("cat", "engine").
			Int32("track", int32(i)).
			Int("offered", len(events)).
			Int("accepted", n).
			Msg("queue overflow")
	}
	return n
}

// ScheduleRaw decodes wire records and schedules them.
func (e *Engine) ScheduleRaw(i transport.TrackIndex, raw []byte) (int, error) {
	e.ready()
	events, err := event.Decode(raw)
	if err != nil {
		return 0, err
	}
	defer e.lock()()
	return e.schedule(i, events), nil
}

// HandleEventsNow applies events at the start of the next render call,
// ignoring their frames and the transport state.
func (e *Engine) HandleEventsNow(i transport.TrackIndex, events []event.Event) int {
	defer e.lock()()
	return e.sched.HandleEventsNow(i, events)
}

// HandleRawNow decodes wire records and applies them immediately.
func (e *Engine) HandleRawNow(i transport.TrackIndex, raw []byte) (int, error) {
	e.ready()
	events, err := event.Decode(raw)
	if err != nil {
		return 0, err
	}
	defer e.lock()()
	return e.sched.HandleEventsNow(i, events), nil
}

// ClearEvents drops queued events at or after fromFrame. Events already
// applied are not retracted.
func (e *Engine) ClearEvents(i transport.TrackIndex, fromFrame event.Frame) error {
	defer e.lock()()
	if !e.sched.ClearEvents(i, fromFrame) {
		return fmt.Errorf("clear %d: %w", i, ErrUnknownTrack)
	}
	return nil
}

// SetLevel sets a track's linear gain. Unknown tracks are ignored.
func (e *Engine) SetLevel(i transport.TrackIndex, level float32) {
	defer e.lock()()
	e.mix.SetLevel(i, level)
}

// Level returns a track's linear gain, 0 if unknown.
func (e *Engine) Level(i transport.TrackIndex) float32 {
	e.ready()
	return e.mix.Level(i)
}

// Play starts the transport.
func (e *Engine) Play() {
	e.ready()
	e.sched.Play()
}

// Pause stops the transport. A render call in progress completes.
func (e *Engine) Pause() {
	e.ready()
	e.sched.Pause()
}

// IsPlaying reports the transport state.
func (e *Engine) IsPlaying() bool {
	e.ready()
	return e.sched.IsPlaying()
}

// Position returns the absolute frame of the next tick.
func (e *Engine) Position() event.Frame {
	e.ready()
	return e.sched.Position()
}

// SetPosition seeks the transport.
func (e *Engine) SetPosition(frame event.Frame) {
	e.ready()
	e.sched.SetPosition(frame)
}

// BufferAvailableCount returns the free queue slots of a track, 0 if unknown.
func (e *Engine) BufferAvailableCount(i transport.TrackIndex) int {
	e.ready()
	return e.sched.BufferAvailableCount(i)
}

// LastRenderTimeUs returns the wall clock in microseconds at call time.
func (e *Engine) LastRenderTimeUs() uint64 {
	e.ready()
	return e.sched.LastRenderTimeUs()
}

// Tracks returns the registered track indices in ascending order.
func (e *Engine) Tracks() []transport.TrackIndex {
	e.ready()
	return e.sched.Tracks()
}

// Instrument returns the instrument attached to a track.
func (e *Engine) Instrument(i transport.TrackIndex) (instrument.Instrument, bool) {
	e.ready()
	return e.mix.Track(i)
}

// Stats returns a snapshot for a registered track.
func (e *Engine) Stats(i transport.TrackIndex) (TrackStats, bool) {
	defer e.lock()()
	if !e.sched.HasTrack(i) {
		return TrackStats{Track: transport.NoTrack}, false
	}
	return TrackStats{
		Track:     i,
		Level:     e.mix.Level(i),
		Available: e.sched.BufferAvailableCount(i),
		Dropped:   e.sched.Dropped(i),
		Overflows: e.overflows[i],
	}, true
}

// Render fills out with numFrames interleaved frames. It is the audio
// callback entry point: it never blocks or allocates, and after Close it
// renders silence rather than failing on the audio thread.
func (e *Engine) Render(out []float32, numFrames int) {
	if e.closed.Load() {
		clear(out[:numFrames*e.mix.Channels()])
		return
	}
	e.mix.RenderAudio(out, numFrames)
}

// Close pauses the transport and unregisters every track. Further control
// calls panic with ErrEngineNotReady.
func (e *Engine) Close() error {
	defer e.lock()()
	e.sched.Pause()
	for _, i := range e.sched.Tracks() {
		e.sched.RemoveTrack(i)
	}
	e.closed.Store(true)
	debug.Log("engine", "closed")
	return nil
}
