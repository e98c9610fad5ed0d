package link

// CRCInit is the value a running CRC is reset to at the start of every frame.
const CRCInit CRC = 0xFFFF

// crcGood is the residue of a running CRC after a frame and its own
// little-endian trailer have been fed through it.
const crcGood CRC = 0

// CRC is a running 16-bit frame check value.
//
// The recurrence is the table-free form of the reflected CCITT polynomial
// (0x8408) with no final XOR, also known as CRC-16/MCRF4XX. Because there is
// no final XOR, feeding the trailer bytes (low byte first) of a correctly
// built frame drives the running value to zero.
type CRC uint16

// NewCRC returns a CRC reset to CRCInit.
func NewCRC() CRC { return CRCInit }

// Reset sets c back to CRCInit.
func (c *CRC) Reset() { *c = CRCInit }

// Update folds one byte into the running CRC.
func (c *CRC) Update(b byte) {
	crc := uint16(*c)
	d := b ^ byte(crc)
	d ^= d << 4 // 8-bit overflow intentional
	crc = (uint16(d)<<8 | crc>>8) ^ uint16(d>>4) ^ uint16(d)<<3
	*c = CRC(crc)
}

// UpdateBytes folds every byte of p into the running CRC.
func (c *CRC) UpdateBytes(p []byte) {
	for _, b := range p {
		c.Update(b)
	}
}

// Valid reports whether c is the residue of a complete, uncorrupted frame.
func (c CRC) Valid() bool { return c == crcGood }

// Trailer returns the two trailer bytes in transmission order (low, high).
func (c CRC) Trailer() (lo, hi byte) {
	return byte(c), byte(c >> 8)
}

// Checksum computes the CRC of p starting from CRCInit.
func Checksum(p []byte) CRC {
	c := NewCRC()
	c.UpdateBytes(p)

	return c
}
