package link

import (
	"fmt"
)

// FeedByte runs one inbound byte through the frame assembler.
//
// Completed, CRC-valid frames are dispatched before FeedByte returns: data is
// delivered to the DataHandler and acks are written to the transport.
// An error is returned only under UnframedFatal, once the session is faulted.
func (s *Session) FeedByte(b byte) error {
	if s.faulted {
		return ErrSessionFaulted
	}

	switch s.frameState {
	case stateOutsideFrame:
		if b == FrameByte {
			s.openFrame()

			return nil
		}

		s.metrics.incUnframedBytes()
		if s.cfg.unframedPolicy == UnframedFatal {
			s.faulted = true
			s.logger.Warn("link: byte outside of frame, session faulted", "byte", fmt.Sprintf("0x%02X", b))

			return fmt.Errorf("%w: 0x%02X", ErrUnframedByte, b)
		}

	case stateInFrame:
		switch b {
		case FrameByte:
			if len(s.rxBuf) >= 2 {
				s.dispatch(s.rxBuf)
			}
			s.openFrame()
		case EscapeByte:
			s.frameState = stateInFrameEscaped
		default:
			s.accept(b)
		}

	case stateInFrameEscaped:
		if b == FrameByte {
			// A delimiter always wins; the half-escaped frame is corrupt.
			s.openFrame()

			return nil
		}
		s.accept(b ^ EscapeMask)

	case stateDiscarding:
		if b == FrameByte {
			s.openFrame()
		}
	}

	return nil
}

// FeedBytes runs every byte of p through FeedByte, stopping at the first error.
func (s *Session) FeedBytes(p []byte) error {
	for _, b := range p {
		if err := s.FeedByte(b); err != nil {
			return err
		}
	}

	return nil
}

// openFrame starts assembling a new frame.
func (s *Session) openFrame() {
	s.rxBuf = s.rxBuf[:0]
	s.rxCRC.Reset()
	s.frameState = stateInFrame
}

// accept appends a de-escaped byte to the frame in progress.
func (s *Session) accept(b byte) {
	if len(s.rxBuf) == cap(s.rxBuf) {
		s.metrics.incRxOverruns()
		s.logger.Debug("link: frame exceeds receive buffer, dropped", "limit", cap(s.rxBuf))
		s.rxBuf = s.rxBuf[:0]
		s.frameState = stateDiscarding

		return
	}

	s.rxBuf = append(s.rxBuf, b)
	s.rxCRC.Update(b)
	s.frameState = stateInFrame
}
