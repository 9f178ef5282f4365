package poll

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the subset of clockwork.Clock the poller needs. Tests pass a
// clockwork.FakeClock.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RealClock is the wall clock
var RealClock Clock = clockwork.NewRealClock()
