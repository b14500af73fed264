package service

import "time"

// Clock abstracts "now" so expiry logic is deterministic in tests.
// The hold manager never reads the wall clock directly.
type Clock interface {
    Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
