package link

import (
	"github.com/arloliu/go-arqlink/internal/util"
)

// minFrameLen is a control byte plus the two CRC trailer bytes.
const minFrameLen = 3

// dispatch handles one completed frame (de-escaped, delimiters stripped).
func (s *Session) dispatch(frame []byte) {
	if len(frame) < minFrameLen {
		s.metrics.incRuntFrames()
		s.logger.Debug("link: runt frame dropped", "len", len(frame))

		return
	}

	// No NACK: the sender's ack timeout recovers the frame.
	if !s.rxCRC.Valid() {
		s.metrics.incCRCErrors()
		s.logger.Debug("link: crc mismatch, frame dropped", "len", len(frame), "crc", uint16(s.rxCRC))

		return
	}

	s.metrics.incFramesRecv()

	ctrl := Control(frame[0])
	s.ackUpto(ctrl.Ack())

	if !ctrl.IsData() {
		return
	}

	s.handleData(ctrl.Seq(), frame[1:len(frame)-2])
}

// handleData delivers an in-order payload or deals with an out-of-order one,
// then acknowledges with the current receive sequence.
func (s *Session) handleData(seq Seq, payload []byte) {
	s.slotMu.Lock()
	expected := s.rxSeq
	s.slotMu.Unlock()

	if seq != expected {
		s.metrics.incOutOfOrder()
		s.logger.Debug("link: out-of-order frame", "seq", seq, "expected", expected)

		if s.cfg.reorderBuffer {
			s.cacheFrame(expected, seq, payload)
		}

		s.sendAck()

		return
	}

	s.advanceRx()
	s.deliver(payload)

	if s.cfg.reorderBuffer {
		s.drainReorder()
	}

	s.sendAck()
}

// advanceRx moves the receive sequence past the frame just accepted.
func (s *Session) advanceRx() {
	s.slotMu.Lock()
	s.rxSeq = s.rxSeq.Next()
	s.slotMu.Unlock()
}

func (s *Session) deliver(payload []byte) {
	s.metrics.incDataDelivered()

	if s.onData != nil {
		s.onData(payload)
	}
}

// cacheFrame keeps a frame that arrived ahead of the expected one.
// Frames behind the expected sequence are retransmissions of data already
// delivered and are not kept.
func (s *Session) cacheFrame(expected, seq Seq, payload []byte) {
	ahead := expected.Distance(seq)
	if ahead >= s.windowSize {
		return
	}
	if s.reorder[seq] != nil {
		return
	}

	s.reorder[seq] = util.CloneSlice(payload, 0)
	s.metrics.incReordered()
}

// drainReorder delivers cached frames that now follow on contiguously.
func (s *Session) drainReorder() {
	for {
		s.slotMu.Lock()
		next := s.rxSeq
		s.slotMu.Unlock()

		payload := s.reorder[next]
		if payload == nil {
			return
		}
		s.reorder[next] = nil

		s.advanceRx()
		s.deliver(payload)
	}
}
