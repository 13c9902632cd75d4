// Package datetime parses the free-text dates and clock times users type
// into the reminder dialogs, and resolves per-user time zones.
//
// All parsing is relative to a caller-supplied reference instant; the
// package never reads the wall clock.
package datetime
