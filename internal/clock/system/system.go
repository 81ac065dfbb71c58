// Package system provides the wall clock used by the circuit breaker.
package system

import "time"

// Clock reads the real time in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
