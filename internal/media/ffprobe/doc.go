// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing container format metadata
//   - Probe: the validated duration and optional source bitrate squash needs
//   - CLI: a Prober backed by the ffprobe binary
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns the parsed Result
//   - CLI.Probe: Inspect plus validation; a missing, non-numeric, or
//     non-positive duration is reported as services.ErrProbe, while a missing
//     bit_rate is tolerated
package ffprobe
