package link

import (
	"sync/atomic"
)

// Metrics contains atomic counters for a link session.
// Counters can be used as the value of a prometheus CounterFunc.
type Metrics struct {
	// FramesSent indicates the number of data frames sent for the first time.
	FramesSent atomic.Uint64
	// FramesRecv indicates the number of CRC-valid frames received.
	FramesRecv atomic.Uint64
	// Retransmits indicates the number of data frames sent again after a timeout.
	Retransmits atomic.Uint64
	// AcksSent indicates the number of ack-only frames sent.
	AcksSent atomic.Uint64
	// AcksRecv indicates the number of acknowledgements that released slots.
	AcksRecv atomic.Uint64
	// DataDelivered indicates the number of payloads handed to the data handler.
	DataDelivered atomic.Uint64

	// CRCErrors indicates the number of frames dropped on CRC mismatch.
	CRCErrors atomic.Uint64
	// RuntFrames indicates the number of frames too short to hold a control byte and trailer.
	RuntFrames atomic.Uint64
	// OutOfOrder indicates the number of data frames that did not carry the expected sequence.
	OutOfOrder atomic.Uint64
	// Reordered indicates the number of out-of-order frames kept in the reorder cache.
	Reordered atomic.Uint64
	// UnframedBytes indicates the number of bytes discarded outside of any frame.
	UnframedBytes atomic.Uint64
	// RxOverruns indicates the number of frames dropped for exceeding the receive buffer.
	RxOverruns atomic.Uint64
	// WriteErrors indicates the number of transport write or flush failures.
	WriteErrors atomic.Uint64
}

func (m *Metrics) incFramesSent()    { m.FramesSent.Add(1) }
func (m *Metrics) incFramesRecv()    { m.FramesRecv.Add(1) }
func (m *Metrics) incRetransmits()   { m.Retransmits.Add(1) }
func (m *Metrics) incAcksSent()      { m.AcksSent.Add(1) }
func (m *Metrics) incAcksRecv()      { m.AcksRecv.Add(1) }
func (m *Metrics) incDataDelivered() { m.DataDelivered.Add(1) }
func (m *Metrics) incCRCErrors()     { m.CRCErrors.Add(1) }
func (m *Metrics) incRuntFrames()    { m.RuntFrames.Add(1) }
func (m *Metrics) incOutOfOrder()    { m.OutOfOrder.Add(1) }
func (m *Metrics) incReordered()     { m.Reordered.Add(1) }
func (m *Metrics) incUnframedBytes() { m.UnframedBytes.Add(1) }
func (m *Metrics) incRxOverruns()    { m.RxOverruns.Add(1) }
func (m *Metrics) incWriteErrors()   { m.WriteErrors.Add(1) }
