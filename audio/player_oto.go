//go:build !headless

package audio

import (
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Player plays a Source on the default output device.
type Player struct {
	ctx     *oto.Context
	player  *oto.Player
	started bool
	mutex   sync.Mutex // only for setup/control operations
}

// NewPlayer opens the device in float32 LE at the source's channel count.
// It blocks until the device is ready.
func NewPlayer(src Source, opts Options) (*Player, error) {
	r := newReader(src, opts.bufferFrames())
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   opts.SampleRate,
		ChannelCount: r.channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	p := &Player{ctx: ctx}
	p.player = ctx.NewPlayer(r)
	p.player.SetBufferSize(opts.bufferFrames() * r.channels * bytesPerSample)
	return p, nil
}

func (p *Player) Start() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.started && p.player != nil {
		p.player.Play()
		p.started = true
	}
}

func (p *Player) Stop() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.started && p.player != nil {
		p.player.Pause()
		p.started = false
	}
}

func (p *Player) Close() {
	p.Stop()
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.player != nil {
		p.player.Close()
		p.player = nil
	}
}

func (p *Player) IsStarted() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.started
}
