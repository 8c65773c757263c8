package orchestrator

import "sync/atomic"

// StopFlag is a one-way latch. Exactly one caller wins the transition.
type StopFlag struct {
	v atomic.Bool
}

// Trip sets the flag and reports whether this call performed the transition.
func (s *StopFlag) Trip() bool {
	return s.v.CompareAndSwap(false, true)
}

// Stopped reports whether the flag has been set.
func (s *StopFlag) Stopped() bool {
	return s.v.Load()
}
