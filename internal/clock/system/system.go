// Package system provides the wall clock used to stamp screenshot records.
package system

import "time"

// Clock implements screenshot.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to microseconds, the finest
// precision the document stores keep.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
