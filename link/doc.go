// Package link provides a reliable, ordered, point-to-point byte-stream
// transport over an unreliable serial link such as a UART.
//
// # Protocol Overview
//
// Every frame on the wire looks like:
//
//	FRAME | control | payload ... | crc_lo | crc_hi | FRAME
//
// FRAME (0x7E) delimits frames and never appears inside one. Any control,
// payload or CRC byte equal to FRAME or ESCAPE (0x7D) is sent as ESCAPE
// followed by the byte XOR 0x20.
//
// The control byte carries three fields:
//
//   - bit 7: 1 for a data frame, 0 for an ack-only frame
//   - bits 5-3: the sequence number the sender expects to receive next
//   - bits 2-0: the sender's own sequence number
//
// The CRC is a 16-bit reflected CCITT checksum (CRC-16/MCRF4XX) over the
// control byte and payload, sent low byte first. A frame is valid when the
// running CRC over control, payload and trailer is zero.
//
// # Reliability
//
// Sequence numbers are 3 bits wide. Up to WindowSize (at most 4) data frames
// may be unacknowledged at once; they are kept in a fixed slot arena for
// retransmission. The receiver accepts only the frame it expects next,
// delivers it to the DataHandler and answers with an ack-only frame; any
// other data frame is answered with a repeat of the current ack. Corrupted
// frames are dropped silently.
//
// A single retransmit timer watches the oldest unacknowledged frame. When it
// fires, at most one overdue frame is resent and the timer is re-armed for
// the fixed ack delay. There is no RTT estimation and no backoff.
//
// # Concurrency
//
// A Session spawns no goroutines. Its TX slot table is guarded by a mutex
// that is released before any Transport call. Entry points that emit frames
// must not run concurrently; the uart package runs a Session inside a single
// event loop, and the sim package fires timers synchronously.
package link
