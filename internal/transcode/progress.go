package transcode

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Progress is a snapshot derived from one completed ffmpeg progress block.
type Progress struct {
	// Percent is in [0,100], or -1 when it cannot be derived.
	Percent float64
	// ETA is zero when it cannot be derived.
	ETA     time.Duration
	OutTime time.Duration
	Speed   string
	FPS     string
	Bitrate string
	Done    bool
}

// ProgressParser accumulates ffmpeg -progress key/value lines and emits a
// Progress each time a block is closed by progress=continue.
type ProgressParser struct {
	durationSeconds float64
	fields          map[string]string
}

// NewProgressParser creates a parser for an input of the given duration.
func NewProgressParser(durationSeconds float64) *ProgressParser {
	return &ProgressParser{durationSeconds: durationSeconds, fields: make(map[string]string)}
}

// ParseProgressLine splits a key=value line. Blank lines, lines without a
// separator, and lines with an empty key or value are rejected.
func ParseProgressLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}
	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}

// Feed consumes one line. It returns a Progress and true when the line closed
// a progress=continue block.
// A field reported as N/A is forgotten rather than left at its previous value.
func (p *ProgressParser) Feed(line string) (Progress, bool) {
	key, value, ok := ParseProgressLine(line)
	if !ok {
		return Progress{}, false
	}
	if value == "N/A" {
		delete(p.fields, key)
		return Progress{}, false
	}
	p.fields[key] = value
	if key != "progress" || value != "continue" {
		return Progress{}, false
	}
	return p.snapshot(), true
}

// Final returns the 100% update reported once the encoder exits cleanly.
func (p *ProgressParser) Final() Progress {
	snap := p.snapshot()
	snap.Percent = 100
	snap.ETA = 0
	snap.Done = true
	return snap
}

func (p *ProgressParser) snapshot() Progress {
	progress := Progress{
		Percent: -1,
		Speed:   p.fields["speed"],
		FPS:     p.fields["fps"],
		Bitrate: p.fields["bitrate"],
	}
	outSeconds, hasOut := p.outSeconds()
	if hasOut {
		progress.OutTime = time.Duration(outSeconds * float64(time.Second))
	}
	if hasOut && p.durationSeconds > 0 {
		progress.Percent = math.Max(0, math.Min(100, outSeconds/p.durationSeconds*100))
	}
	if multiplier, ok := ParseSpeedMultiplier(progress.Speed); ok && hasOut && multiplier > 0 {
		remaining := math.Max(0, p.durationSeconds-outSeconds)
		progress.ETA = time.Duration(remaining / multiplier * float64(time.Second))
	}
	return progress
}

// out_time_ms is reported in microseconds despite its name.
func (p *ProgressParser) outSeconds() (float64, bool) {
	raw, ok := p.fields["out_time_ms"]
	if !ok {
		raw, ok = p.fields["out_time_us"]
	}
	if !ok {
		return 0, false
	}
	micros, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(micros) / 1_000_000, true
}

// ParseSpeedMultiplier parses ffmpeg speed values such as "2.35x".
func ParseSpeedMultiplier(speed string) (float64, bool) {
	speed = strings.TrimSpace(speed)
	if speed == "" {
		return 0, false
	}
	speed = strings.TrimSuffix(speed, "x")
	value, err := strconv.ParseFloat(strings.TrimSpace(speed), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
