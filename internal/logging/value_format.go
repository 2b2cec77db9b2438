package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// attrString renders a value for the console header, never quoted.
func attrString(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindAny:
		return anyString(v.Any())
	default:
		return formatValue(v)
	}
}

// formatValue renders a field value, quoting strings that would otherwise be
// ambiguous on a "key: value" line.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().Local().Format(consoleTimeLayout)
	case slog.KindDuration:
		d := v.Duration()
		if d >= time.Second {
			d = d.Round(time.Millisecond)
		}
		return d.String()
	case slog.KindString:
		return quoteIfNeeded(v.String())
	case slog.KindAny:
		return quoteIfNeeded(anyString(v.Any()))
	default:
		return v.String()
	}
}

func anyString(value any) string {
	if err, ok := value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(value)
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
