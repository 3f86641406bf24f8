package radio

import (
	"sync"
)

// Simulated is an in-memory Radio driven entirely by test code (or the
// blink CLI's -sim mode): it tracks which command is outstanding and
// lets the caller complete it explicitly with Complete*, rather than
// actually transmitting anything over the air.
type Simulated struct {
	mu          sync.Mutex
	busy        bool
	pending     Op
	lastTx      []byte
	completions chan Status
}

func NewSimulated() *Simulated {
	return &Simulated{completions: make(chan Status, 1)}
}

func (s *Simulated) start(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	s.pending = op
	return nil
}

func (s *Simulated) Reset() error {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
	return nil
}

func (s *Simulated) Transmit(frameBytes []byte) error {
	if err := s.start(OpTransmit); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastTx = append([]byte(nil), frameBytes...)
	s.mu.Unlock()
	return nil
}

func (s *Simulated) ReceiveContinuous() error { return s.start(OpReceiveContinuous) }
func (s *Simulated) ReceiveTimed(int) error   { return s.start(OpReceiveTimed) }
func (s *Simulated) CAD() error               { return s.start(OpCAD) }

func (s *Simulated) Completions() <-chan Status { return s.completions }

// LastTransmitted returns the bytes staged by the most recent Transmit
// call, for test assertions.
func (s *Simulated) LastTransmitted() []byte { return s.lastTx }

// Busy reports whether a command is currently outstanding.
func (s *Simulated) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// PendingOp reports the outstanding command, if any.
func (s *Simulated) PendingOp() (Op, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.busy
}

// Complete delivers st as the completion for whatever command is
// currently outstanding, stamping st.Op accordingly. It panics if no
// command is outstanding, so a test harness driving the simulated radio
// incorrectly fails loudly instead of silently desynchronising.
func (s *Simulated) Complete(st Status) {
	s.mu.Lock()
	if !s.busy {
		s.mu.Unlock()
		panic("radio: completion delivered with no command outstanding")
	}
	st.Op = s.pending
	s.busy = false
	s.mu.Unlock()
	s.completions <- st
}

// CompleteEmpty delivers a no-data completion (nothing received before
// timeout).
func (s *Simulated) CompleteEmpty() { s.Complete(Status{}) }

// CompleteCRCError delivers a completion with the CRC-error flag set.
func (s *Simulated) CompleteCRCError() { s.Complete(Status{CRCError: true}) }

// CompleteCAD delivers a CAD result.
func (s *Simulated) CompleteCAD(detected bool) { s.Complete(Status{CADDetected: detected}) }

// CompleteTX delivers a transmit-done completion.
func (s *Simulated) CompleteTX() { s.Complete(Status{}) }
