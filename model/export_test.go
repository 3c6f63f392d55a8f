package model

import "time"

// SetNow replaces the audit clock and returns a func restoring it.
func SetNow(fn func() time.Time) func() {
	prev := now
	now = fn
	return func() { now = prev }
}
