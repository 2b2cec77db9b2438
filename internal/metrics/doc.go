// Package metrics exports the outcome of a squash run as Prometheus gauges
// in the node-exporter textfile format.
//
// squash is a one-shot CLI, so nothing is scraped directly. Instead each run
// rewrites a .prom file (atomically, via prometheus.WriteToTextfile) that a
// node-exporter textfile collector picks up. All metrics are prefixed with
// "squash_":
//   - squash_run_success: 1 when the run wrote a usable output
//   - squash_run_state: one-hot gauge labelled by terminal state
//   - squash_run_iterations / squash_run_max_iterations
//   - squash_run_input_bytes, squash_run_output_bytes, squash_run_target_bytes
//   - squash_run_final_bitrate_kbps
//   - squash_run_duration_seconds
//   - squash_run_last_timestamp_seconds
//   - squash_iteration_duration_seconds: histogram over the run's encodes
package metrics
