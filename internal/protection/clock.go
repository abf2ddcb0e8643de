package protection

import "time"

// Clock abstracts wall-clock reads so that window and expiry behavior is
// deterministically testable without real sleeps.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return realClock{} }
