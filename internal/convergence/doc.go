// Package convergence drives a video toward a target file size by re-encoding
// it at adjusted bitrates until the result lands inside a tolerance band below
// the target or the iteration budget runs out.
//
// The Controller owns the search state for a single run. It probes the input
// once, derives starting bitrates and bounds from internal/bitrate, then loops:
// encode, classify the outcome as under or over target, tighten the bounds, and
// pick the next candidate with a secant step once both sides are bracketed or a
// proportional step before that. Every encode lands in a single temporary
// artifact that is either promoted to the output path or removed before Run
// returns.
//
// Presentation lives outside this package. Callers attach a Sink to receive
// Events (iteration start, progress, results, the final Report) and render or
// persist them as they see fit.
package convergence
