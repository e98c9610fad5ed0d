package link

import (
	"time"
)

// ackUpto applies the peer's cumulative acknowledgement: every packet before
// peerAck has been received. Acks that do not move the window forward, or
// that point past the last packet sent, are ignored.
//
// The retransmit timer is re-armed for the oldest packet still outstanding,
// or disarmed when nothing is left.
func (s *Session) ackUpto(peerAck Seq) {
	now := s.tr.Now()

	s.slotMu.Lock()
	advance := s.ackSeq.Distance(peerAck)
	outstanding := s.outstandingLocked()
	if advance == 0 || advance > outstanding {
		s.slotMu.Unlock()

		return
	}

	for i := 0; i < advance; i++ {
		slot := s.slotFor(s.ackSeq.Add(i))
		slot.status = slotNone
		slot.length = 0
	}
	s.ackSeq = peerAck

	if s.retxDeferred && peerAck.Distance(s.retxDeferredSeq) >= outstanding-advance {
		s.retxDeferred = false
	}

	// The oldest remaining packet has waited the longest.
	var oldest uint32
	found := false
	for i := 0; i < outstanding-advance; i++ {
		slot := s.slotFor(peerAck.Add(i))
		if slot.status != slotSent {
			continue
		}
		if age := elapsedMs(now, slot.sendTime); !found || age > oldest {
			oldest = age
			found = true
		}
	}

	var (
		prev TimerHandle
		gen  uint64
	)
	if found {
		prev, gen = s.armLocked()
	} else {
		prev = s.disarmLocked()
	}
	s.slotMu.Unlock()

	s.metrics.incAcksRecv()
	s.logger.Debug("link: ack received", "ack", peerAck, "released", advance)

	if prev != 0 {
		s.tr.CancelTimer(prev)
	}

	if found {
		var delay time.Duration
		if oldest < s.ackDelayMs {
			delay = time.Duration(s.ackDelayMs-oldest) * time.Millisecond
		}
		s.scheduleTimer(gen, delay)
	}
}

// checkTimeouts is the retransmit timer callback for generation gen.
//
// It retransmits at most one packet per firing: the first outstanding packet,
// in sequence order, whose ack delay has elapsed. The timer is then re-armed
// for a full ack delay. Stale firings and firings with nothing outstanding
// are no-ops.
func (s *Session) checkTimeouts(gen uint64) {
	now := s.tr.Now()

	s.slotMu.Lock()
	if gen != s.timerGen {
		s.slotMu.Unlock()

		return
	}
	s.ackTimer = 0

	outstanding := s.outstandingLocked()
	if outstanding == 0 {
		s.disarmLocked()
		s.slotMu.Unlock()

		return
	}

	var (
		due   Seq
		found bool
	)
	for i := 0; i < outstanding; i++ {
		seq := s.ackSeq.Add(i)
		slot := s.slotFor(seq)
		if slot.status == slotSent && elapsedMs(now, slot.sendTime) >= s.ackDelayMs {
			due, found = seq, true

			break
		}
	}

	// Never splice a retransmission into a frame that is being streamed.
	if found && s.preparing != nil {
		s.retxDeferred = true
		s.retxDeferredSeq = due
		found = false
	}

	_, next := s.armLocked()
	s.slotMu.Unlock()

	if found {
		s.retransmit(due)
	}

	s.scheduleTimer(next, s.cfg.ackDelay)
}
