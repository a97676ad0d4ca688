package core

import "time"

// Clock abstracts wall-clock time so time-driven transitions can be tested.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

var _ Clock = (*realClock)(nil)

// NewClock returns a Clock backed by time.Now, in UTC.
func NewClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC() }
