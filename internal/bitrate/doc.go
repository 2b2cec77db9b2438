// Package bitrate holds the pure arithmetic behind the size search: the
// starting video bitrate for a byte budget, the audio bitrate that still
// leaves room for viable video, and the initial search bounds.
//
// All rates are kilobits per second (1000 bits), all sizes are bytes.
package bitrate
