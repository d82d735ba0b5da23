// Package clock abstracts time for deterministic tests.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System implements Clock using time.Now.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed implements Clock with a constant instant.
type Fixed struct {
	Time time.Time
}

// Now returns the configured instant.
func (f Fixed) Now() time.Time {
	return f.Time
}
