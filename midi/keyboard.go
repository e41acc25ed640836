package midi

import (
	"fmt"
	"sync"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-seqengine/event"
)

// KeyboardController handles a standard MIDI keyboard
type KeyboardController struct {
	id       string
	inPort   drivers.In
	stopFunc func()

	mu      sync.Mutex
	closed  bool
	msgChan chan event.MIDIData
	dropped atomic.Uint64
}

// NewKeyboardController creates a keyboard controller (input only)
func NewKeyboardController(id string, inPort drivers.In) (*KeyboardController, error) {
	kb := &KeyboardController{
		id:      id,
		inPort:  inPort,
		msgChan: make(chan event.MIDIData, 64),
	}

	// Open input
	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			kb.handle(msg)
		})
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", id, err)
		}
		kb.stopFunc = stop
	}

	return kb, nil
}

// handle forwards channel voice messages. It never blocks the driver
// callback; when the reader falls behind the message is counted and dropped.
func (kb *KeyboardController) handle(msg gomidi.Message) {
	ev, ok := event.FromMessage(0, msg)
	if !ok {
		return
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.closed {
		return
	}
	select {
	case kb.msgChan <- ev.MIDI():
	default:
		kb.dropped.Add(1)
	}
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Type() ControllerType {
	return ControllerKeyboard
}

func (kb *KeyboardController) Messages() <-chan event.MIDIData {
	return kb.msgChan
}

// Dropped returns how many messages were discarded because the reader was slow.
func (kb *KeyboardController) Dropped() uint64 {
	return kb.dropped.Load()
}

func (kb *KeyboardController) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if !kb.closed {
		kb.closed = true
		close(kb.msgChan)
	}
	return nil
}
