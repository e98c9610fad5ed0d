package link

import "fmt"

// SeqModulus is the size of the sequence number space (3 bits on the wire).
const SeqModulus = 8

const seqMask = SeqModulus - 1

// Seq is a 3-bit frame sequence number. All arithmetic wraps modulo SeqModulus.
type Seq uint8

// Next returns s+1 modulo SeqModulus.
func (s Seq) Next() Seq { return (s + 1) & seqMask }

// Add returns s+n modulo SeqModulus.
func (s Seq) Add(n int) Seq { return Seq((int(s) + n) & seqMask) }

// Distance returns how many increments it takes to get from s to to.
func (s Seq) Distance(to Seq) int { return int((to - s) & seqMask) }

// Control is the first byte of every frame.
//
//	bit 7     data frame (1) or ack-only frame (0)
//	bits 5-3  piggybacked ack: the sequence the sender expects next
//	bits 2-0  the sender's own sequence number
type Control byte

const (
	ctrlData     Control = 0x80
	ctrlAckShift         = 3
)

// DataControl builds the control byte of a data frame.
func DataControl(ack, seq Seq) Control {
	return ctrlData | Control(ack&seqMask)<<ctrlAckShift | Control(seq&seqMask)
}

// AckControl builds the control byte of an ack-only frame.
func AckControl(ack, seq Seq) Control {
	return Control(ack&seqMask)<<ctrlAckShift | Control(seq&seqMask)
}

// IsData reports whether the frame carries a payload to deliver.
func (c Control) IsData() bool { return c&ctrlData != 0 }

// Seq returns the sender's sequence number.
func (c Control) Seq() Seq { return Seq(c) & seqMask }

// Ack returns the piggybacked acknowledgement.
func (c Control) Ack() Seq { return Seq(c>>ctrlAckShift) & seqMask }

// String implements fmt.Stringer.
func (c Control) String() string {
	kind := "ack"
	if c.IsData() {
		kind = "data"
	}

	return fmt.Sprintf("%s(seq=%d ack=%d)", kind, c.Seq(), c.Ack())
}
