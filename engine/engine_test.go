package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-seqengine/config"
	"go-seqengine/event"
	"go-seqengine/instrument"
	"go-seqengine/transport"
)

// gate outputs 1 on every channel while a key is held.
type gate struct {
	channels int
	held     int
	notes    []uint8
}

func (g *gate) SetOutputFormat(_ int, stereo bool) bool {
	g.channels = 1
	if stereo {
		g.channels = 2
	}
	return true
}

func (g *gate) RenderAudio(buf []float32, numFrames int) {
	v := float32(0)
	if g.held > 0 {
		v = 1
	}
	for i := range buf[:numFrames*g.channels] {
		buf[i] = v
	}
}

func (g *gate) HandleMIDIEvent(status, data1, data2 uint8) {
	switch {
	case status&0xF0 == event.NoteOn && data2 > 0:
		g.held++
		g.notes = append(g.notes, data1)
	case status&0xF0 == event.NoteOff, status&0xF0 == event.NoteOn:
		if g.held > 0 {
			g.held--
		}
	}
}

func (g *gate) Reset() { g.held = 0 }

func newEngine(t *testing.T, mutate ...func(*config.Engine)) *Engine {
	t.Helper()
	cfg := config.Engine{SampleRate: 48000, Channels: 1}
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(config.Engine{SampleRate: 48000, Channels: 3})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNewStartsPaused(t *testing.T) {
	e := newEngine(t)
	assert.False(t, e.IsPlaying())
	assert.Zero(t, e.Position())
	assert.Empty(t, e.Tracks())
	assert.Equal(t, 48000, e.SampleRate())
	assert.Equal(t, 1, e.Channels())
}

func TestAddTrackErrors(t *testing.T) {
	e := newEngine(t, func(c *config.Engine) { c.MaxTracks = 1 })

	_, err := e.AddTrack(instrument.NewSampler(nil, 60))
	assert.ErrorIs(t, err, ErrFormatRejected)

	i, err := e.AddTrack(&instrument.Silence{})
	require.NoError(t, err)
	assert.Equal(t, transport.TrackIndex(0), i)

	i, err = e.AddTrack(&instrument.Silence{})
	assert.ErrorIs(t, err, ErrNoSlot)
	assert.Equal(t, transport.NoTrack, i)
}

func TestUnknownTrack(t *testing.T) {
	e := newEngine(t)
	assert.ErrorIs(t, e.RemoveTrack(4), ErrUnknownTrack)
	assert.ErrorIs(t, e.ResetTrack(4), ErrUnknownTrack)
	assert.ErrorIs(t, e.ClearEvents(4, 0), ErrUnknownTrack)
	assert.Zero(t, e.ScheduleEvents(4, []event.Event{event.NewMIDI(0, event.NoteOn, 60, 100)}))
	assert.Zero(t, e.HandleEventsNow(4, []event.Event{event.NewMIDI(0, event.NoteOn, 60, 100)}))
	assert.Zero(t, e.BufferAvailableCount(4))
	assert.Zero(t, e.Level(4))
	e.SetLevel(4, 0.5)

	_, ok := e.Stats(4)
	assert.False(t, ok)
}

func TestScheduleAndRender(t *testing.T) {
	e := newEngine(t)
	g := &gate{}
	i, err := e.AddTrack(g)
	require.NoError(t, err)
	e.SetLevel(i, 0.5)

	n := e.ScheduleEvents(i, []event.Event{
		event.NewMIDI(10, event.NoteOn, 60, 100),
		event.NewMIDI(20, event.NoteOff, 60, 0),
	})
	require.Equal(t, 2, n)

	e.Play()
	out := make([]float32, 32)
	e.Render(out, 32)

	for f, v := range out {
		want := float32(0)
		if f >= 10 && f < 20 {
			want = 0.5
		}
		assert.Equal(t, want, v, "frame %d", f)
	}
	assert.Equal(t, event.Frame(32), e.Position())
	assert.Equal(t, []uint8{60}, g.notes)
}

func TestPartialAcceptanceIsCounted(t *testing.T) {
	e := newEngine(t, func(c *config.Engine) { c.QueueCapacity = 4 })
	i, err := e.AddTrack(&instrument.Silence{})
	require.NoError(t, err)

	batch := make([]event.Event, 6)
	for j := range batch {
		batch[j] = event.NewMIDI(event.Frame(j), event.NoteOn, 60, 1)
	}
	assert.Equal(t, 4, e.ScheduleEvents(i, batch))
	assert.Zero(t, e.BufferAvailableCount(i))

	st, ok := e.Stats(i)
	require.True(t, ok)
	assert.Equal(t, uint64(1), st.Overflows)
	assert.Equal(t, float32(1), st.Level)
	assert.Zero(t, st.Available)

	require.NoError(t, e.ClearEvents(i, 2))
	assert.Equal(t, 2, e.BufferAvailableCount(i))
	assert.Equal(t, 2, e.ScheduleEvents(i, batch[4:]))
}

func TestStaleEventsAreCounted(t *testing.T) {
	e := newEngine(t)
	i, err := e.AddTrack(&gate{})
	require.NoError(t, err)

	e.SetPosition(5000)
	e.ScheduleEvents(i, []event.Event{event.NewMIDI(100, event.NoteOn, 60, 100)})
	e.Play()
	e.Render(make([]float32, 16), 16)

	st, _ := e.Stats(i)
	assert.Equal(t, uint64(1), st.Dropped)
}

func TestScheduleRaw(t *testing.T) {
	e := newEngine(t)
	g := &gate{}
	i, err := e.AddTrack(g)
	require.NoError(t, err)

	raw := event.Append(nil,
		event.NewMIDI(0, event.NoteOn, 64, 100),
		event.NewMIDI(1, event.NoteOn, 67, 100),
	)
	n, err := e.ScheduleRaw(i, raw)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = e.ScheduleRaw(i, raw[:20])
	assert.ErrorIs(t, err, event.ErrShortRecord)

	e.Play()
	e.Render(make([]float32, 4), 4)
	assert.Equal(t, []uint8{64, 67}, g.notes)
}

func TestHandleRawNowWhilePaused(t *testing.T) {
	e := newEngine(t)
	g := &gate{}
	i, err := e.AddTrack(g)
	require.NoError(t, err)

	n, err := e.HandleRawNow(i, event.Append(nil, event.NewMIDI(999999, event.NoteOn, 72, 90)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e.Render(make([]float32, 8), 8)
	assert.Equal(t, []uint8{72}, g.notes)
	assert.Zero(t, e.Position(), "paused transport does not move")
}

func TestResetTrackSilences(t *testing.T) {
	e := newEngine(t)
	g := &gate{}
	i, err := e.AddTrack(g)
	require.NoError(t, err)

	e.HandleEventsNow(i, []event.Event{event.NewMIDI(0, event.NoteOn, 60, 100)})
	e.Play()
	out := make([]float32, 4)
	e.Render(out, 4)
	assert.Equal(t, float32(1), out[0])

	require.NoError(t, e.ResetTrack(i))
	e.Render(out, 4)
	assert.Equal(t, []float32{0, 0, 0, 0}, out)
}

func TestRemoveTrackReusesSlot(t *testing.T) {
	e := newEngine(t)
	a, _ := e.AddTrack(&instrument.Silence{})
	b, _ := e.AddTrack(&instrument.Silence{})
	require.NoError(t, e.RemoveTrack(a))
	assert.Equal(t, []transport.TrackIndex{b}, e.Tracks())

	c, err := e.AddTrack(&instrument.Silence{})
	require.NoError(t, err)
	assert.Equal(t, a, c)

	inst, ok := e.Instrument(c)
	require.True(t, ok)
	assert.IsType(t, &instrument.Silence{}, inst)
}

func TestSeekDuringPlayback(t *testing.T) {
	e := newEngine(t)
	_, err := e.AddTrack(&instrument.Silence{})
	require.NoError(t, err)
	e.Play()
	e.Render(make([]float32, 64), 64)
	e.SetPosition(1000)
	e.Render(make([]float32, 64), 64)
	assert.Equal(t, event.Frame(1064), e.Position())

	e.Pause()
	e.Render(make([]float32, 64), 64)
	assert.Equal(t, event.Frame(1064), e.Position())
}

func TestLastRenderTimeIsWallClock(t *testing.T) {
	e := newEngine(t)
	before := uint64(time.Now().UnixMicro())
	got := e.LastRenderTimeUs()
	assert.GreaterOrEqual(t, got, before)
}

func TestAddTrackAsync(t *testing.T) {
	e := newEngine(t)
	res := <-e.AddTrackAsync(context.Background(), func(context.Context) (instrument.Instrument, error) {
		return instrument.NewSynth(instrument.WaveSine), nil
	})
	require.NoError(t, res.Err)
	assert.Equal(t, transport.TrackIndex(0), res.Track)
	assert.Equal(t, []transport.TrackIndex{0}, e.Tracks())
}

func TestAddTrackAsyncBuildError(t *testing.T) {
	e := newEngine(t)
	boom := errors.New("sample missing")
	res := <-e.AddTrackAsync(context.Background(), func(context.Context) (instrument.Instrument, error) {
		return nil, boom
	})
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, transport.NoTrack, res.Track)
	assert.Empty(t, e.Tracks())
}

func TestAddTrackAsyncCancelled(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := <-e.AddTrackAsync(ctx, func(context.Context) (instrument.Instrument, error) {
		return &instrument.Silence{}, nil
	})
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, e.Tracks())
}

func TestClosedEnginePanics(t *testing.T) {
	e := newEngine(t)
	_, err := e.AddTrack(&instrument.Silence{})
	require.NoError(t, err)
	e.Play()
	require.NoError(t, e.Close())

	assert.PanicsWithValue(t, ErrEngineNotReady, func() { e.Play() })
	assert.PanicsWithValue(t, ErrEngineNotReady, func() { e.ScheduleEvents(0, nil) })
	assert.PanicsWithValue(t, ErrEngineNotReady, func() { e.Close() })

	out := []float32{1, 1, 1}
	assert.NotPanics(t, func() { e.Render(out, 3) })
	assert.Equal(t, []float32{0, 0, 0}, out)
}

func TestCallWaitingBehindCloseFails(t *testing.T) {
	e := newEngine(t)
	e.mu.Lock()

	done := make(chan any, 1)
	go func() {
		defer func() { done <- recover() }()
		e.AddTrack(&instrument.Silence{})
	}()
	// let the caller block on the mutex, then close the way Close does
	time.Sleep(10 * time.Millisecond)
	e.closed.Store(true)
	e.mu.Unlock()

	assert.Equal(t, ErrEngineNotReady, <-done)
	assert.Empty(t, e.sched.Tracks())
}

func TestNilEnginePanics(t *testing.T) {
	var e *Engine
	assert.PanicsWithValue(t, ErrEngineNotReady, func() { e.Position() })
	assert.PanicsWithValue(t, ErrEngineNotReady, func() { e.AddTrack(&instrument.Silence{}) })
}

func TestEnginesAreIndependent(t *testing.T) {
	a := newEngine(t)
	b := newEngine(t)
	_, err := a.AddTrack(&instrument.Silence{})
	require.NoError(t, err)
	a.Play()
	a.Render(make([]float32, 10), 10)

	assert.Equal(t, event.Frame(10), a.Position())
	assert.Zero(t, b.Position())
	assert.Empty(t, b.Tracks())
}
