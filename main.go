package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"go-seqengine/audio"
	"go-seqengine/config"
	"go-seqengine/debug"
	"go-seqengine/engine"
	"go-seqengine/instrument"
	"go-seqengine/midi"
	"go-seqengine/sequencer"
	"go-seqengine/theme"
	"go-seqengine/transport"
	"go-seqengine/tui"
)

var bassline = sequencer.Pattern{
	Length: 4,
	Notes: []sequencer.Note{
		{Beat: 0, Length: 0.5, Key: 36, Velocity: 110},
		{Beat: 1, Length: 0.25, Key: 36, Velocity: 80},
		{Beat: 1.5, Length: 0.5, Key: 43, Velocity: 100},
		{Beat: 2.5, Length: 0.5, Key: 39, Velocity: 100},
		{Beat: 3, Length: 0.75, Key: 41, Velocity: 90},
	},
}

var groove = map[sequencer.Slot]string{
	sequencer.Kick:     "x...x...x...x...",
	sequencer.Snare:    "....x.......x..o",
	sequencer.ClosedHH: "o.x.o.x.o.x.o.xo",
}

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := debug.Enable(); err != nil {
		fmt.Printf("debug log disabled: %v\n", err)
	}
	defer debug.Disable()

	// Load theme
	palette, err := theme.Load(cfg.UI.Palette)
	if err != nil {
		return fmt.Errorf("palette: %w", err)
	}
	th := theme.New(palette)

	eng, err := engine.New(cfg.Engine)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	names := make(map[transport.TrackIndex]string)

	bass, err := eng.AddTrack(instrument.NewSynth(instrument.WaveSaw))
	if err != nil {
		return err
	}
	names[bass] = "bass"

	// the drum sample is rendered off the UI goroutine
	res := <-eng.AddTrackAsync(ctx, func(context.Context) (instrument.Instrument, error) {
		return instrument.NewSampler(drumHit(cfg.Engine.SampleRate), 36), nil
	})
	if res.Err != nil {
		return res.Err
	}
	drums := res.Track
	names[drums] = "drums"

	live, err := eng.AddTrack(instrument.NewSynth(instrument.WaveTriangle))
	if err != nil {
		return err
	}
	names[live] = "midi in"

	// Sequencer
	clock := sequencer.Clock{SampleRate: cfg.Engine.SampleRate, Tempo: cfg.Sequencer.Tempo}
	manager := sequencer.NewManager(eng, clock, cfg.Sequencer.LookAheadMs)
	if _, err := manager.Add(bass, bassline); err != nil {
		return err
	}
	if _, err := manager.Add(drums, sequencer.DrumPattern(sequencer.GetKit(sequencer.DefaultKit), 9, groove)); err != nil {
		return err
	}

	out, err := openOutput(eng, cfg)
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer out.Close()
	out.Start()

	g, gctx := errgroup.WithContext(ctx)

	var deviceMgr *midi.DeviceManager
	if cfg.MIDI.AutoConnect {
		deviceMgr = midi.NewDeviceManager(cfg.MIDI.InputPort)
		g.Go(func() error {
			deviceMgr.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		return manager.Run(gctx)
	})

	// Create and run TUI
	m := tui.NewModel(eng, manager, deviceMgr, th)
	m.Names = names
	m.MIDITrack = live
	if cfg.MIDI.Track > 0 {
		m.MIDITrack = transport.TrackIndex(cfg.MIDI.Track)
	}
	p := tea.NewProgram(m, tea.WithAltScreen())

	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		return nil
	})
	go func() {
		<-gctx.Done()
		p.Quit()
	}()

	err = g.Wait()
	out.Stop()
	return err
}

func openOutput(eng *engine.Engine, cfg *config.Config) (audio.Output, error) {
	opts := audio.Options{SampleRate: cfg.Engine.SampleRate, BufferFrames: cfg.Audio.BufferFrames}
	if cfg.Audio.Backend == config.BackendHeadless {
		return audio.NewPump(eng, opts), nil
	}
	return audio.NewPlayer(eng, opts)
}

// drumHit synthesizes a short pitched thump for the drum sampler.
func drumHit(sampleRate int) []float32 {
	n := sampleRate / 5
	pcm := make([]float32, n)
	for i := range pcm {
		t := float64(i) / float64(sampleRate)
		freq := instrument.KeyToFreq(36) * (1 + 2*math.Exp(-t*40))
		pcm[i] = float32(math.Sin(2*math.Pi*freq*t) * math.Exp(-t*18))
	}
	return pcm
}
