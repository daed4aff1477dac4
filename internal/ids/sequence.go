package ids

import "sync/atomic"

// Sequence hands out strictly increasing numbers starting after a base.
// Synthetic ids draw from one so every synthetic id in a response is
// unique; server-allocated ephemeral ids draw from a negative one so they
// can never collide with client-assigned numbers.
type Sequence struct {
	n    atomic.Int64
	step int64
}

// NewSequence returns a sequence whose first value is 1.
func NewSequence() *Sequence {
	return &Sequence{step: 1}
}

// NewDescendingSequence returns a sequence whose first value is -1.
func NewDescendingSequence() *Sequence {
	return &Sequence{step: -1}
}

// Next returns the next value.
func (s *Sequence) Next() int64 {
	return s.n.Add(s.step)
}

// Current returns the last value handed out, or 0 if none was.
func (s *Sequence) Current() int64 {
	return s.n.Load()
}
