// Package console renders squash runs for humans: prefixed, severity-coloured
// status lines, a live progress bar on terminals (throttled plain lines
// elsewhere), and the one-line run summary.
//
// Sink adapts these to convergence.Event so the controller never writes to the
// terminal itself.
package console
