// Package textutil provides the small text helpers shared by the console
// output, the history tables, and error messages.
//
// The primary use cases are:
//   - Formatting byte counts with binary (1024) units, e.g. "98.50MB"
//   - Formatting durations as "5s", "2m 05s", or "1h 02m 03s"
//   - Choosing between two values inline with Ternary
//
// Every formatter is a pure function of its input, so repeated calls with
// identical arguments always produce identical strings.
package textutil
