// Package shutdown provides the one-way stop flag polled by the
// acquisition loop.
package shutdown

import "sync/atomic"

// Signal starts unset and can only transition to set. The zero value is
// ready to use.
type Signal struct {
	flag atomic.Bool
}

// Request sets the signal. It reports true only for the call that
// performed the transition.
func (s *Signal) Request() bool {
	return s.flag.CompareAndSwap(false, true)
}

// IsSet reports whether shutdown was requested.
func (s *Signal) IsSet() bool {
	return s.flag.Load()
}
