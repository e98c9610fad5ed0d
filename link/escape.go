package link

// Reserved byte values of the framing layer.
const (
	// FrameByte delimits frames. It is never escaped; every bare FrameByte on
	// the wire closes the current frame and opens the next one.
	FrameByte byte = 0x7E

	// EscapeByte precedes an escaped byte inside a frame.
	EscapeByte byte = 0x7D

	// EscapeMask is XORed into a byte that follows EscapeByte.
	EscapeMask byte = 0x20
)

// NeedsEscape reports whether b must be stuffed before it is put inside a frame.
func NeedsEscape(b byte) bool {
	return b == FrameByte || b == EscapeByte
}

// AppendEscaped appends the on-wire form of b to dst.
func AppendEscaped(dst []byte, b byte) []byte {
	if NeedsEscape(b) {
		return append(dst, EscapeByte, b^EscapeMask)
	}

	return append(dst, b)
}

// Escape returns the stuffed form of p. Delimiters are not added.
func Escape(p []byte) []byte {
	out := make([]byte, 0, len(p)+len(p)/8+2)
	for _, b := range p {
		out = AppendEscaped(out, b)
	}

	return out
}

// Unescape reverses Escape. It returns false if p ends in a dangling
// EscapeByte or contains a bare FrameByte.
func Unescape(p []byte) ([]byte, bool) {
	out := make([]byte, 0, len(p))
	escaped := false

	for _, b := range p {
		switch {
		case escaped:
			out = append(out, b^EscapeMask)
			escaped = false
		case b == EscapeByte:
			escaped = true
		case b == FrameByte:
			return nil, false
		default:
			out = append(out, b)
		}
	}

	if escaped {
		return nil, false
	}

	return out, true
}

// EncodeFrame builds a complete wire frame for the given control byte and
// payload: delimiter, stuffed control, payload and CRC trailer, delimiter.
func EncodeFrame(ctrl Control, payload []byte) []byte {
	return appendFrame(make([]byte, 0, 2*len(payload)+8), ctrl, payload)
}

// appendFrame appends a complete wire frame to dst.
//
// Retransmissions and ack-only frames are built whole with it; first
// transmissions are streamed by the TX path instead.
func appendFrame(dst []byte, ctrl Control, payload []byte) []byte {
	crc := NewCRC()
	dst = append(dst, FrameByte)

	crc.Update(byte(ctrl))
	dst = AppendEscaped(dst, byte(ctrl))

	for _, b := range payload {
		crc.Update(b)
		dst = AppendEscaped(dst, b)
	}

	lo, hi := crc.Trailer()
	dst = AppendEscaped(dst, lo)
	dst = AppendEscaped(dst, hi)

	return append(dst, FrameByte)
}
