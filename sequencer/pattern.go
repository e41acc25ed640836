package sequencer

import (
	"fmt"
	"slices"

	"go-seqengine/event"
)

// StepsPerBeat is the drum grid resolution (sixteenth notes).
const StepsPerBeat = 4

// Note is one note of a pattern, positioned in beats from the pattern start.
type Note struct {
	Beat     float64
	Length   float64
	Key      uint8
	Velocity uint8
}

// Pattern is a looped phrase on one MIDI channel.
type Pattern struct {
	Length  float64 // beats
	Channel uint8
	Notes   []Note
}

// Keys returns the distinct keys the pattern plays, ascending.
func (p Pattern) Keys() []uint8 {
	var keys []uint8
	for _, n := range p.Notes {
		if !slices.Contains(keys, n.Key) {
			keys = append(keys, n.Key)
		}
	}
	slices.Sort(keys)
	return keys
}

// Validate rejects patterns that cannot be looped.
func (p Pattern) Validate() error {
	if p.Length <= 0 {
		return fmt.Errorf("pattern length %v", p.Length)
	}
	for i, n := range p.Notes {
		if n.Beat < 0 || n.Beat >= p.Length {
			return fmt.Errorf("note %d at beat %v outside pattern", i, n.Beat)
		}
		if n.Length <= 0 {
			return fmt.Errorf("note %d has length %v", i, n.Length)
		}
	}
	return nil
}

// events returns the note-on and note-off events of loop number loop whose
// frame, relative to the pattern origin, lies in [from, to). They are
// appended to dst unsorted.
func (p Pattern) events(dst []event.Event, c Clock, loop int64, from, to int64) []event.Event {
	base := float64(loop) * p.Length
	on := event.NoteOn | p.Channel&0x0F
	off := event.NoteOff | p.Channel&0x0F
	for _, n := range p.Notes {
		start := c.BeatsToFrames(base + n.Beat)
		end := c.BeatsToFrames(base + n.Beat + n.Length)
		if start >= from && start < to {
			dst = append(dst, event.NewMIDI(event.Frame(start), on, n.Key, n.Velocity))
		}
		if end >= from && end < to {
			dst = append(dst, event.NewMIDI(event.Frame(end), off, n.Key, 0))
		}
	}
	return dst
}

// DrumPattern builds a pattern from step grids, one string per kit slot.
// 'x' is an accented hit, 'o' a normal hit, anything else a rest. Each
// character is one sixteenth note; the longest row sets the pattern length.
func DrumPattern(kit DrumKit, channel uint8, rows map[Slot]string) Pattern {
	p := Pattern{Channel: channel}
	steps := 0
	for slot, row := range rows {
		steps = max(steps, len(row))
		for i, c := range row {
			var vel uint8
			switch c {
			case 'x':
				vel = 127
			case 'o':
				vel = 90
			default:
				continue
			}
			p.Notes = append(p.Notes, Note{
				Beat:     float64(i) / StepsPerBeat,
				Length:   0.5 / StepsPerBeat,
				Key:      kit.Note(slot),
				Velocity: vel,
			})
		}
	}
	slices.SortFunc(p.Notes, func(a, b Note) int {
		if a.Beat != b.Beat {
			if a.Beat < b.Beat {
				return -1
			}
			return 1
		}
		return int(a.Key) - int(b.Key)
	})
	p.Length = float64(max(steps, StepsPerBeat)) / StepsPerBeat
	return p
}
