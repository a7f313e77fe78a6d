// Package safego launches background goroutines that survive panics.
package safego

import "log/slog"

// Go runs fn in a new goroutine. A panic in fn is recovered and logged.
func Go(fn func()) {
	go func() {
		defer Recover("background goroutine")
		fn()
	}()
}

// Recover logs a recovered panic. It must be deferred directly.
func Recover(where string) {
	if r := recover(); r != nil {
		slog.Error("recovered panic", "where", where, "panic", r)
	}
}
