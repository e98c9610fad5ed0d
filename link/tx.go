package link

import (
	"fmt"
)

// FramesAvailable returns how many more packets may be started before the
// send window is full.
func (s *Session) FramesAvailable() int {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()

	return s.framesAvailableLocked()
}

func (s *Session) framesAvailableLocked() int {
	n := s.windowSize - s.outstandingLocked()
	if s.preparing != nil {
		n--
	}

	return n
}

// StartPacket opens a new data frame with the next TX sequence number.
//
// The delimiter and control byte are written to the transport immediately.
// It returns ErrWindowFull when FramesAvailable is zero and
// ErrPacketInProgress when the previous packet was not finished.
func (s *Session) StartPacket() error {
	s.slotMu.Lock()
	if s.preparing != nil {
		s.slotMu.Unlock()

		return ErrPacketInProgress
	}
	if s.framesAvailableLocked() <= 0 {
		s.slotMu.Unlock()

		return ErrWindowFull
	}

	seq := s.txSeq
	slot := s.slotFor(seq)
	slot.status = slotPreparing
	slot.length = 0
	s.preparing = slot
	ctrl := DataControl(s.rxSeq, seq)
	s.slotMu.Unlock()

	s.txCRC.Reset()
	buf := append(s.txScratch[:0], FrameByte)
	buf = s.appendTx(buf, byte(ctrl))
	s.write(buf)
	s.txScratch = buf[:0]

	return nil
}

// Append adds one payload byte to the packet in progress.
func (s *Session) Append(b byte) error {
	slot, err := s.reserve(1)
	if err != nil {
		return err
	}
	slot.buf[slot.length-1] = b

	buf := s.appendTx(s.txScratch[:0], b)
	s.write(buf)
	s.txScratch = buf[:0]

	return nil
}

// AppendBuf adds p to the packet in progress.
//
// The bytes are kept for retransmission and streamed to the transport
// right away in escaped form.
func (s *Session) AppendBuf(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	slot, err := s.reserve(len(p))
	if err != nil {
		return err
	}
	copy(slot.buf[slot.length-len(p):], p)

	buf := s.txScratch[:0]
	for _, b := range p {
		buf = s.appendTx(buf, b)
	}
	s.write(buf)
	s.txScratch = buf[:0]

	return nil
}

// reserve grows the packet in progress by n bytes.
func (s *Session) reserve(n int) (*txSlot, error) {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()

	slot := s.preparing
	if slot == nil {
		return nil, ErrNoPacket
	}
	if slot.length+n > len(slot.buf) {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, slot.length+n, len(slot.buf))
	}
	slot.length += n

	return slot, nil
}

// FinishPacket closes the packet in progress: it writes the CRC trailer and
// the closing delimiter, flushes the transport, records the send time,
// advances the TX sequence and arms the retransmit timer if it is idle.
func (s *Session) FinishPacket() error {
	s.slotMu.Lock()
	if s.preparing == nil {
		s.slotMu.Unlock()

		return ErrNoPacket
	}
	s.slotMu.Unlock()

	lo, hi := s.txCRC.Trailer()
	buf := AppendEscaped(s.txScratch[:0], lo)
	buf = AppendEscaped(buf, hi)
	buf = append(buf, FrameByte)
	s.emit(buf)
	s.txScratch = buf[:0]

	now := s.tr.Now()

	s.slotMu.Lock()
	slot := s.preparing
	slot.status = slotSent
	slot.sendTime = now
	s.preparing = nil
	seq := s.txSeq
	s.txSeq = s.txSeq.Next()

	var gen uint64
	arm := !s.timerArmed
	if arm {
		_, gen = s.armLocked()
	}
	s.slotMu.Unlock()

	s.metrics.incFramesSent()
	s.logger.Debug("link: packet sent", "seq", seq, "len", slot.length)

	if arm {
		s.scheduleTimer(gen, s.cfg.ackDelay)
	}

	s.runDeferred()

	return nil
}

// AbortPacket abandons the packet in progress. A closing delimiter is
// written so the peer drops the partial frame on its CRC check.
func (s *Session) AbortPacket() error {
	s.slotMu.Lock()
	slot := s.preparing
	if slot == nil {
		s.slotMu.Unlock()

		return ErrNoPacket
	}
	slot.status = slotNone
	slot.length = 0
	s.preparing = nil
	s.slotMu.Unlock()

	s.emit([]byte{FrameByte})
	s.runDeferred()

	return nil
}

// Send transmits p as a single data frame.
func (s *Session) Send(p []byte) error {
	if err := s.StartPacket(); err != nil {
		return err
	}

	if err := s.AppendBuf(p); err != nil {
		_ = s.AbortPacket()

		return err
	}

	return s.FinishPacket()
}

// appendTx folds b into the TX CRC and appends its escaped form to dst.
func (s *Session) appendTx(dst []byte, b byte) []byte {
	s.txCRC.Update(b)

	return AppendEscaped(dst, b)
}

// retransmit re-emits the stored packet seq with the current piggyback ack.
// No sequence counter changes; the slot's send time is refreshed.
func (s *Session) retransmit(seq Seq) {
	s.slotMu.Lock()
	slot := s.slotFor(seq)
	if slot.status != slotSent {
		s.slotMu.Unlock()

		return
	}
	ctrl := DataControl(s.rxSeq, seq)
	payload := slot.buf[:slot.length]
	s.slotMu.Unlock()

	frame := appendFrame(s.retxScratch[:0], ctrl, payload)
	s.emit(frame)
	s.retxScratch = frame[:0]

	now := s.tr.Now()

	s.slotMu.Lock()
	if slot.status == slotSent {
		slot.sendTime = now
	}
	s.slotMu.Unlock()

	s.metrics.incRetransmits()
	s.logger.Debug("link: packet retransmitted", "seq", seq)
}

// sendAck emits an ack-only frame carrying the current receive sequence.
// While a packet is being built the ack is deferred until it is finished.
func (s *Session) sendAck() {
	s.slotMu.Lock()
	if s.preparing != nil {
		s.ackDeferred = true
		s.slotMu.Unlock()

		return
	}
	ctrl := AckControl(s.rxSeq, s.txSeq)
	s.slotMu.Unlock()

	frame := appendFrame(s.ackScratch[:0], ctrl, nil)
	s.emit(frame)
	s.ackScratch = frame[:0]

	s.metrics.incAcksSent()
}

// runDeferred performs the work postponed while a packet was being built.
func (s *Session) runDeferred() {
	s.slotMu.Lock()
	ack := s.ackDeferred
	retx, seq := s.retxDeferred, s.retxDeferredSeq
	s.ackDeferred = false
	s.retxDeferred = false
	s.slotMu.Unlock()

	if retx {
		s.retransmit(seq)
	}
	if ack {
		s.sendAck()
	}
}
