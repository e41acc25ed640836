package event

import (
	"encoding/binary"
	"math"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Frame is an absolute sample position since transport start. It wraps at 2^32.
type Frame = uint32

// Kind tags the payload of an Event. It is 32 bits wide so that the wire
// record has no padding on any platform.
type Kind uint32

const (
	KindMIDI   Kind = 0
	KindVolume Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindMIDI:
		return "midi"
	case KindVolume:
		return "volume"
	default:
		return "unknown"
	}
}

// DataSize is the size of the opaque event payload.
const DataSize = 8

// MIDI status high nibbles
const (
	NoteOff       uint8 = 0x80
	NoteOn        uint8 = 0x90
	ControlChange uint8 = 0xB0
	PitchBend     uint8 = 0xE0
)

// Event is a single scheduled action for one track.
type Event struct {
	Frame Frame
	Kind  Kind
	Data  [DataSize]byte
}

// MIDIData is the payload of a KindMIDI event
type MIDIData struct {
	Status uint8
	Data1  uint8
	Data2  uint8
}

// Command returns the status high nibble (NoteOn, NoteOff, ...).
func (d MIDIData) Command() uint8 {
	return d.Status & 0xF0
}

// Channel returns the status low nibble.
func (d MIDIData) Channel() uint8 {
	return d.Status & 0x0F
}

// VolumeData is the payload of a KindVolume event
type VolumeData struct {
	Level float32
}

// NewMIDI builds a KindMIDI event.
func NewMIDI(frame Frame, status, data1, data2 uint8) Event {
	e := Event{Frame: frame, Kind: KindMIDI}
	e.Data[0] = status
	e.Data[1] = data1
	e.Data[2] = data2
	return e
}

// NewVolume builds a KindVolume event. The level is stored as native-endian
// float32 bits, the same way the wire format carries it.
func NewVolume(frame Frame, level float32) Event {
	e := Event{Frame: frame, Kind: KindVolume}
	binary.NativeEndian.PutUint32(e.Data[:4], math.Float32bits(level))
	return e
}

// MIDI interprets the payload as a MIDI message.
func (e Event) MIDI() MIDIData {
	return MIDIData{Status: e.Data[0], Data1: e.Data[1], Data2: e.Data[2]}
}

// Volume interprets the payload as a volume level.
func (e Event) Volume() VolumeData {
	return VolumeData{Level: math.Float32frombits(binary.NativeEndian.Uint32(e.Data[:4]))}
}

// At returns a copy of e retargeted to frame.
func (e Event) At(frame Frame) Event {
	e.Frame = frame
	return e
}

// FromMessage converts a channel voice message into a KindMIDI event.
// Messages longer than three bytes (sysex, meta) are rejected.
func FromMessage(frame Frame, msg gomidi.Message) (Event, bool) {
	if len(msg) == 0 || len(msg) > 3 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		return Event{}, false
	}
	var d [3]byte
	copy(d[:], msg)
	return NewMIDI(frame, d[0], d[1], d[2]), true
}

// Message returns the MIDI payload as a gomidi message. Only valid for KindMIDI.
func (e Event) Message() gomidi.Message {
	switch e.Data[0] & 0xF0 {
	case 0xC0, 0xD0:
		// program change and channel pressure carry one data byte
		return gomidi.Message{e.Data[0], e.Data[1]}
	}
	return gomidi.Message{e.Data[0], e.Data[1], e.Data[2]}
}

// AllNotesOff returns a note-off for every note number on channel, at frame 0.
func AllNotesOff(channel uint8) [128]Event {
	var events [128]Event
	for note := range events {
		msg := gomidi.NoteOff(channel&0x0F, uint8(note))
		events[note], _ = FromMessage(0, msg)
	}
	return events
}
