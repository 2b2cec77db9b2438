// Package transcode runs one encode of the input at an explicit video and
// audio bitrate and reports the size of what it produced.
//
// Engine is the capability the size search depends on. FFmpeg drives the
// ffmpeg binary, parsing its -progress key/value stream into Progress updates
// while diagnostics are captured from stderr; Synthetic produces files whose
// size is a deterministic function of the requested bitrate so the search can
// be exercised without an encoder.
//
// Progress updates are presentation only. Callers must not base control
// decisions on them.
package transcode
