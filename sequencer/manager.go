package sequencer

import (
	"context"
	"sync"
	"time"

	"go-seqengine/debug"
	"go-seqengine/event"
	"go-seqengine/transport"
)

// fillInterval is how often the manager tops up every feeder.
const fillInterval = 50 * time.Millisecond

// Manager keeps every feeder filled ahead of the playhead and applies
// transport-wide changes such as tempo to all of them.
type Manager struct {
	sched     Scheduler
	clock     Clock
	lookAhead int64 // frames

	mu      sync.RWMutex
	feeders []*Feeder

	interruptChan chan struct{} // signal the fill loop to recalculate

	// Notify the TUI of updates
	UpdateChan chan struct{}
}

// NewManager creates a manager planning lookAheadMs ahead of the playhead.
func NewManager(sched Scheduler, clock Clock, lookAheadMs int) *Manager {
	clock.Tempo = ClampTempo(clock.Tempo)
	return &Manager{
		sched:         sched,
		clock:         clock,
		lookAhead:     clock.MsToFrames(lookAheadMs),
		interruptChan: make(chan struct{}, 1),
		UpdateChan:    make(chan struct{}, 1),
	}
}

// Add starts looping p on track.
func (m *Manager) Add(track transport.TrackIndex, p Pattern) (*Feeder, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	f := NewFeeder(m.sched, track, m.clock, p)
	m.feeders = append(m.feeders, f)
	m.mu.Unlock()

	m.interrupt()
	return f, nil
}

// Feeders returns a snapshot of the feeders.
func (m *Manager) Feeders() []*Feeder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Feeder, len(m.feeders))
	copy(out, m.feeders)
	return out
}

// Feeder returns the feeder writing to track.
func (m *Manager) Feeder(track transport.TrackIndex) *Feeder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.feeders {
		if f.Track() == track {
			return f
		}
	}
	return nil
}

// Tempo returns the shared tempo in BPM.
func (m *Manager) Tempo() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clock.Tempo
}

// SetTempo changes the tempo of every feeder.
func (m *Manager) SetTempo(bpm float64) {
	bpm = ClampTempo(bpm)
	m.mu.Lock()
	m.clock.Tempo = bpm
	feeders := m.feeders
	m.mu.Unlock()

	for _, f := range feeders {
		f.SetTempo(bpm)
	}
	m.interrupt()
}

// Start re-anchors every pattern at the playhead.
func (m *Manager) Start() {
	for _, f := range m.Feeders() {
		f.Start()
	}
	m.interrupt()
}

// Stop clears and silences every feeder's track.
func (m *Manager) Stop() {
	for _, f := range m.Feeders() {
		f.Stop()
	}
}

// interrupt signals the fill loop to recalculate
func (m *Manager) interrupt() {
	select {
	case m.interruptChan <- struct{}{}:
	default:
	}
}

// Fill tops up every feeder to the look-ahead horizon. It does nothing while
// the transport is paused.
func (m *Manager) Fill() {
	if !m.sched.IsPlaying() {
		return
	}
	horizon := m.sched.Position() + event.Frame(m.lookAhead)
	for _, f := range m.Feeders() {
		f.FillUntil(horizon)
	}
}

// Run fills feeders until ctx is done (blocking - run in goroutine)
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(fillInterval)
	defer ticker.Stop()

	debug.Log("sequencer", "fill loop started, look-ahead %d frames", m.lookAhead)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.interruptChan:
			m.Fill()
		case <-ticker.C:
			m.Fill()
			select {
			case m.UpdateChan <- struct{}{}:
			default:
			}
		}
	}
}
