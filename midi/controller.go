package midi

import "go-seqengine/event"

// ControllerType identifies the kind of controller
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerKeyboard
)

func (t ControllerType) String() string {
	switch t {
	case ControllerKeyboard:
		return "keyboard"
	default:
		return "unknown"
	}
}

// Controller is the interface for MIDI input devices
type Controller interface {
	ID() string
	Type() ControllerType

	// Channel voice messages from the device, in arrival order
	Messages() <-chan event.MIDIData

	// Lifecycle
	Close() error
}

// Forward delivers every message from c to send until the controller is
// closed (blocking - run in goroutine)
func Forward(c Controller, send func(event.MIDIData)) {
	for msg := range c.Messages() {
		send(msg)
	}
}
