// Package rollover resolves the daily file names the server works with and
// detects UTC day changes.
//
// Resolution is a pure function of the current UTC date and a directory, so
// rollover is checked on every request instead of by a timer. A Tracker
// remembers the last resolved path and reports when it changes.
package rollover
