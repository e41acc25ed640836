package audio

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ramp renders the running frame count on every channel.
type ramp struct {
	channels int
	frames   atomic.Int64
	calls    atomic.Int64
}

func (r *ramp) Channels() int { return r.channels }

func (r *ramp) Render(out []float32, numFrames int) {
	base := r.frames.Load()
	for f := 0; f < numFrames; f++ {
		for c := 0; c < r.channels; c++ {
			out[f*r.channels+c] = float32(base + int64(f))
		}
	}
	r.frames.Add(int64(numFrames))
	r.calls.Add(1)
}

func decode(p []byte) []float32 {
	out := make([]float32, len(p)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
	}
	return out
}

func TestEncodeFloat32LE(t *testing.T) {
	dst := make([]byte, 10)
	n := EncodeFloat32LE(dst, []float32{1, -0.5, 2})
	assert.Equal(t, 8, n, "only whole samples fit")
	assert.Equal(t, []float32{1, -0.5}, decode(dst[:n]))
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, dst[:4])
}

func TestReaderRendersWholeFrames(t *testing.T) {
	src := &ramp{channels: 2}
	r := newReader(src, 4)

	p := make([]byte, 3*2*4+5) // three frames plus a partial one
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 24, n)
	assert.Equal(t, []float32{0, 0, 1, 1, 2, 2}, decode(p[:n]))
	assert.Equal(t, int64(3), src.frames.Load())
}

func TestReaderGrowsBuffer(t *testing.T) {
	src := &ramp{channels: 1}
	r := newReader(src, 2)

	p := make([]byte, 8*4)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, decode(p))
}

func TestReaderTinyRequestIsSilence(t *testing.T) {
	src := &ramp{channels: 2}
	r := newReader(src, 2)

	p := []byte{1, 2, 3}
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{0, 0, 0}, p)
	assert.Zero(t, src.calls.Load())
}

func TestPumpPeriod(t *testing.T) {
	p := NewPump(&ramp{channels: 2}, Options{SampleRate: 48000, BufferFrames: 480})
	assert.Equal(t, 10*time.Millisecond, p.Period())

	p = NewPump(&ramp{channels: 1}, Options{})
	assert.Equal(t, time.Duration(defaultBufferFrames)*time.Second/48000, p.Period())
}

func TestPumpDrivesSource(t *testing.T) {
	src := &ramp{channels: 1}
	p := NewPump(src, Options{SampleRate: 48000, BufferFrames: 48})
	require.False(t, p.IsStarted())

	p.Start()
	p.Start()
	assert.True(t, p.IsStarted())
	assert.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, time.Millisecond)

	p.Stop()
	assert.False(t, p.IsStarted())
	calls := src.calls.Load()
	assert.Equal(t, calls*48, src.frames.Load(), "every pull renders a full buffer")

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, calls, src.calls.Load(), "no renders after Stop")

	p.Close()
	p.Stop()
}
