package midi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-seqengine/debug"
)

// ErrPortsTimeout means the driver did not answer a port listing in time.
// CoreMIDI is known to hang; restarting coreaudiod and midiserver fixes it.
var ErrPortsTimeout = errors.New("midi port listing timed out")

const portsTimeout = 3 * time.Second

// PortList is a snapshot of the system's MIDI ports.
type PortList struct {
	In  []drivers.In
	Out []drivers.Out
}

// InNames returns the input port names.
func (p PortList) InNames() []string {
	names := make([]string, len(p.In))
	for i, in := range p.In {
		names[i] = in.String()
	}
	return names
}

// OutNames returns the output port names.
func (p PortList) OutNames() []string {
	names := make([]string, len(p.Out))
	for i, out := range p.Out {
		names[i] = out.String()
	}
	return names
}

// Ports lists MIDI ports, giving up after a timeout
func Ports() (PortList, error) {
	ch := make(chan PortList, 1)
	go func() {
		ch <- PortList{In: gomidi.GetInPorts(), Out: gomidi.GetOutPorts()}
	}()

	select {
	case result := <-ch:
		return result, nil
	case <-time.After(portsTimeout):
		return PortList{}, ErrPortsTimeout
	}
}

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

func (t DeviceEventType) String() string {
	if t == DeviceConnected {
		return "connected"
	}
	return "disconnected"
}

// DeviceManager handles hot-plug detection of MIDI keyboards
type DeviceManager struct {
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
	match       string
}

// NewDeviceManager creates a device manager that connects every input whose
// name contains match (case-insensitive). An empty match accepts any input
// except the system's MIDI through port.
func NewDeviceManager(match string) *DeviceManager {
	return &DeviceManager{
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		match:       strings.ToLower(match),
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	copy := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		copy[k] = v
	}
	return copy
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) accepts(name string) bool {
	name = strings.ToLower(name)
	if dm.match == "" {
		return !strings.Contains(name, "through")
	}
	return strings.Contains(name, dm.match)
}

func (dm *DeviceManager) scan() {
	ports, err := Ports()
	if err != nil {
		debug.Log("midi", "scan skipped: %v", err)
		return
	}

	byName := make(map[string]drivers.In, len(ports.In))
	for _, in := range ports.In {
		byName[in.String()] = in
	}
	dm.reconcile(ports.InNames(), func(id string) (Controller, error) {
		return NewKeyboardController(id, byName[id])
	})
}

// reconcile connects newly seen inputs and drops the ones that vanished.
func (dm *DeviceManager) reconcile(names []string, open func(id string) (Controller, error)) {
	// Build map of what we see now
	seenIDs := make(map[string]bool)

	for _, id := range names {
		if !dm.accepts(id) {
			continue
		}
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		c, err := open(id)
		if err != nil {
			debug.Log("midi", "open %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = c
		dm.mu.Unlock()

		debug.Log("midi", "connected %s", id)
		dm.events <- DeviceEvent{
			Type:       DeviceConnected,
			Controller: c,
			ID:         id,
		}
	}

	// Check for disconnects
	dm.mu.Lock()
	var toRemove []string
	for id := range dm.controllers {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		c := dm.controllers[id]
		c.Close()
		delete(dm.controllers, id)
		debug.Log("midi", "disconnected %s", id)
		dm.events <- DeviceEvent{
			Type: DeviceDisconnected,
			ID:   id,
		}
	}
	dm.mu.Unlock()
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}
