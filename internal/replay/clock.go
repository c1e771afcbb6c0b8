package replay

import "time"

// Clock is the virtual clock release times are measured on.
//
// The system clock reads time.Now(), whose monotonic component makes
// release-time comparisons immune to wall-clock adjustments.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current time with its monotonic reading.
func (SystemClock) Now() time.Time {
	return time.Now()
}
