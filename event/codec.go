package event

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// RecordSize is the size of one event on the wire:
// frame u32 | kind u32 | payload [8]u8, native byte order.
const RecordSize = 16

// ErrShortRecord is returned when a raw buffer is not a whole number of records.
var ErrShortRecord = errors.New("event: buffer is not a multiple of the record size")

// Decode parses a dense array of wire records.
func Decode(raw []byte) ([]Event, error) {
	if len(raw)%RecordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortRecord, len(raw))
	}
	events := make([]Event, len(raw)/RecordSize)
	DecodeInto(events, raw)
	return events, nil
}

// DecodeInto decodes as many whole records as fit in dst and returns the
// number decoded. It does not allocate.
func DecodeInto(dst []Event, raw []byte) int {
	n := min(len(dst), len(raw)/RecordSize)
	for i := 0; i < n; i++ {
		rec := raw[i*RecordSize : (i+1)*RecordSize]
		dst[i].Frame = binary.NativeEndian.Uint32(rec[0:4])
		dst[i].Kind = Kind(binary.NativeEndian.Uint32(rec[4:8]))
		copy(dst[i].Data[:], rec[8:RecordSize])
	}
	return n
}

// Append encodes events onto dst in wire format.
func Append(dst []byte, events ...Event) []byte {
	for _, e := range events {
		var rec [RecordSize]byte
		binary.NativeEndian.PutUint32(rec[0:4], e.Frame)
		binary.NativeEndian.PutUint32(rec[4:8], uint32(e.Kind))
		copy(rec[8:], e.Data[:])
		dst = append(dst, rec[:]...)
	}
	return dst
}
