package textutil

import (
	"fmt"
	"math"
	"time"
)

var byteUnits = [...]string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders size using 1024-based units. Plain bytes are shown as an
// integer; larger units use two decimal places. Negative sizes are treated as
// their magnitude with a leading minus sign.
func FormatBytes(size int64) string {
	return FormatBytesPrecision(size, 2)
}

// FormatBytesPrecision is FormatBytes with a caller-chosen number of decimals.
func FormatBytesPrecision(size int64, precision int) string {
	if size < 0 {
		if size == math.MinInt64 {
			size++
		}
		return "-" + FormatBytesPrecision(-size, precision)
	}
	if precision < 0 {
		precision = 0
	}
	value := float64(size)
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d%s", size, byteUnits[0])
	}
	return fmt.Sprintf("%.*f%s", precision, value, byteUnits[unit])
}

// FormatDuration renders d truncated to whole seconds. Negative durations
// render as "0s".
func FormatDuration(d time.Duration) string {
	return FormatSeconds(d.Seconds())
}

// FormatSeconds renders a number of seconds the same way as FormatDuration.
func FormatSeconds(totalSeconds float64) string {
	if totalSeconds < 0 || math.IsNaN(totalSeconds) {
		totalSeconds = 0
	}
	total := int64(totalSeconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %02dm %02ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %02ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatSignedBytes renders a byte delta with an explicit "+" for growth.
func FormatSignedBytes(delta int64) string {
	if delta > 0 {
		return "+" + FormatBytes(delta)
	}
	return FormatBytes(delta)
}

// FormatKbps renders a bitrate rounded to whole kilobits per second.
func FormatKbps(kbps float64) string {
	return fmt.Sprintf("%.0f kbps", kbps)
}

// Ternary returns a when cond holds and b otherwise.
func Ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
