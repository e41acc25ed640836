// Package audio connects an engine's render entry point to an output
// device. The device pulls bytes; a reader turns each pull into one render
// call of whole frames.
package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// Source is what a player pulls from. engine.Engine satisfies it.
type Source interface {
	Render(out []float32, numFrames int)
	Channels() int
}

// Output is a started/stopped audio sink.
type Output interface {
	Start()
	Stop()
	Close()
	IsStarted() bool
}

// Options configures an output.
type Options struct {
	SampleRate   int
	BufferFrames int // frames per device pull; also the pump period
}

const (
	bytesPerSample      = 4
	defaultBufferFrames = 512
)

func (o Options) bufferFrames() int {
	if o.BufferFrames <= 0 {
		return defaultBufferFrames
	}
	return o.BufferFrames
}

// EncodeFloat32LE writes src as little-endian float32 into dst and returns
// the number of bytes written.
func EncodeFloat32LE(dst []byte, src []float32) int {
	n := min(len(src), len(dst)/bytesPerSample)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(dst[i*bytesPerSample:], math.Float32bits(src[i]))
	}
	return n * bytesPerSample
}

// reader adapts a Source to io.Reader in float32 LE. Read is called from
// the device thread only.
type reader struct {
	src       Source
	channels  int
	sampleBuf []float32 // pre-allocated, grown only if the device asks for more
}

func newReader(src Source, bufferFrames int) *reader {
	ch := src.Channels()
	return &reader{
		src:       src,
		channels:  ch,
		sampleBuf: make([]float32, bufferFrames*ch),
	}
}

func (r *reader) Read(p []byte) (int, error) {
	frameBytes := r.channels * bytesPerSample
	frames := len(p) / frameBytes
	if frames == 0 {
		clear(p)
		return len(p), nil
	}

	numSamples := frames * r.channels
	if len(r.sampleBuf) < numSamples {
		r.sampleBuf = make([]float32, numSamples)
	}
	samples := r.sampleBuf[:numSamples]
	r.src.Render(samples, frames)

	n := EncodeFloat32LE(p, samples)
	return n, nil
}

// Pump drives a Source at real-time rate without a device, so the transport
// advances in headless runs and tests.
type Pump struct {
	r      *reader
	period time.Duration
	buf    []byte

	mutex   sync.Mutex
	started bool
	done    chan struct{}
	stopped chan struct{}
}

// NewPump renders BufferFrames frames every BufferFrames/SampleRate seconds.
func NewPump(src Source, opts Options) *Pump {
	frames := opts.bufferFrames()
	rate := opts.SampleRate
	if rate <= 0 {
		rate = 48000
	}
	r := newReader(src, frames)
	return &Pump{
		r:      r,
		period: time.Duration(frames) * time.Second / time.Duration(rate),
		buf:    make([]byte, frames*r.channels*bytesPerSample),
	}
}

// Period returns the time between renders.
func (p *Pump) Period() time.Duration {
	return p.period
}

func (p *Pump) run(done, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.r.Read(p.buf)
		}
	}
}

func (p *Pump) Start() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.started {
		return
	}
	p.done = make(chan struct{})
	p.stopped = make(chan struct{})
	go p.run(p.done, p.stopped)
	p.started = true
}

// Stop halts the pump and waits for an in-flight render to finish.
func (p *Pump) Stop() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.started {
		return
	}
	close(p.done)
	<-p.stopped
	p.started = false
}

func (p *Pump) Close() {
	p.Stop()
}

func (p *Pump) IsStarted() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.started
}
