package scheduler

import "time"

// Clock abstracts wall-clock access so acquisition runs can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock returns a Clock backed by the system clock.
func RealClock() Clock { return realClock{} }
