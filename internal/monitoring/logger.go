// Package monitoring carries the diagnostics shared by the instrument
// drivers: a replaceable logger and Prometheus transfer counters.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger used for transfer progress.
// It defaults to log.Printf; SetLogger redirects or mutes it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Capture redirects Logf into the returned slice until restore is called.
// Intended for tests that assert on progress output.
func Capture() (lines *[]string, restore func()) {
	original := Logf
	var captured []string
	Logf = func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	}
	return &captured, func() { Logf = original }
}
