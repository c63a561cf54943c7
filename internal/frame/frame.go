// Package frame parses the KICKR BIKE SHIFT short notification frames and
// filters retransmitted duplicates.
//
// A short frame is exactly 3 bytes: bytes 0-1 are a big-endian prefix
// identifying the physical button, byte 2 carries the event: bit 7 set
// means press (clear means release) and bits 0-6 are a rolling sequence
// counter the peripheral increments per event, wrapping at 128.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Size is the exact length of a short frame.
const Size = 3

var (
	// ErrMalformed marks a payload that is not a short frame.
	ErrMalformed = errors.New("frame: malformed payload")
	// ErrUnknownButton marks a short frame whose prefix maps to no button.
	ErrUnknownButton = errors.New("frame: unknown button prefix")
)

// Event is one decoded button event.
type Event struct {
	Button  string // logical button name
	Prefix  uint16 // raw frame prefix, for diagnostics
	Pressed bool
	Seq     uint8 // rolling sequence, 0-127
}

// Decoder decodes short frames and tracks the last accepted sequence per
// button. It is not safe for concurrent use; the notification pipeline
// runs it on a single worker.
type Decoder struct {
	buttons map[uint16]string
	lastSeq map[string]int16 // -1 until the first frame for a button is accepted
}

// NewDecoder creates a Decoder for the given prefix-to-button mapping.
func NewDecoder(buttons map[uint16]string) *Decoder {
	lastSeq := make(map[string]int16, len(buttons))
	for _, name := range buttons {
		lastSeq[name] = -1
	}
	return &Decoder{buttons: buttons, lastSeq: lastSeq}
}

// Decode parses a raw notification payload into an Event. It fails with
// ErrMalformed for payloads that are not 3 bytes and ErrUnknownButton for
// prefixes outside the mapping. Decode never mutates decoder state.
func (d *Decoder) Decode(payload []byte) (Event, error) {
	if len(payload) != Size {
		return Event{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(payload))
	}
	prefix := binary.BigEndian.Uint16(payload[:2])
	name, ok := d.buttons[prefix]
	if !ok {
		return Event{}, fmt.Errorf("%w: %04X", ErrUnknownButton, prefix)
	}
	return Event{
		Button:  name,
		Prefix:  prefix,
		Pressed: payload[2]&0x80 != 0,
		Seq:     payload[2] & 0x7F,
	}, nil
}

// Duplicate reports whether ev is a retransmission of the last accepted
// event for its button. A sequence equal to the stored value is a
// duplicate; any other value is fresh, including the 127→0 wrap and
// larger jumps, since the peripheral is the sole sequence authority and
// provides no gap guarantee. For fresh events the stored sequence is
// updated before returning, so a racing redelivery loses safely.
func (d *Decoder) Duplicate(ev Event) bool {
	if d.lastSeq[ev.Button] == int16(ev.Seq) {
		return true
	}
	d.lastSeq[ev.Button] = int16(ev.Seq)
	return false
}
