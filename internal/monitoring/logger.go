// Package monitoring holds the process-wide diagnostic logger and the
// counters the prediction path reports into.
package monitoring

import "log"

// Logf is the package-level diagnostic logger used by library code. It
// defaults to log.Printf; tests usually mute it with SetLogger(nil).
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
