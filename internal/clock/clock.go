// Package clock indirects the time functions used by the scheduler and the
// sprinkler so tests can control apparent time.
package clock

import "time"

type (
	// Clock abstracts the subset of package time used by timed tasks.
	Clock interface {
		Now() time.Time
		After(d time.Duration) <-chan time.Time
		NewTimer(d time.Duration) Timer
	}

	// Timer abstracts time.Timer.
	Timer interface {
		C() <-chan time.Time
		Reset(d time.Duration) bool
		Stop() bool
	}

	wallClock struct{}

	timer struct {
		*time.Timer
	}
)

// Wall is the real clock.
var Wall Clock = wallClock{}

func (wallClock) Now() time.Time                         { return time.Now() }
func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (wallClock) NewTimer(d time.Duration) Timer         { return timer{Timer: time.NewTimer(d)} }

func (t timer) C() <-chan time.Time { return t.Timer.C }
