package console

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"squash/internal/convergence"
	"squash/internal/textutil"
	"squash/internal/transcode"
)

// ProgressStatus renders "P% | speed Sx | fps F | br B | eta ~T", omitting
// unknown parts.
func ProgressStatus(p transcode.Progress) string {
	parts := make([]string, 0, 5)
	if p.Percent >= 0 {
		parts = append(parts, fmt.Sprintf("%5.1f%%", p.Percent))
	}
	if p.Speed != "" {
		parts = append(parts, "speed "+p.Speed)
	}
	if p.FPS != "" {
		parts = append(parts, "fps "+p.FPS)
	}
	if p.Bitrate != "" {
		parts = append(parts, "br "+p.Bitrate)
	}
	if p.ETA > 0 {
		parts = append(parts, "eta ~"+textutil.FormatDuration(p.ETA))
	}
	return strings.Join(parts, " | ")
}

// PercentDelta renders the signed distance from target as a percentage.
func PercentDelta(size, target int64) string {
	if target <= 0 {
		return "n/a"
	}
	pct := float64(size-target) / float64(target) * 100
	if pct < 0 {
		return fmt.Sprintf("%.2f%%", pct)
	}
	return fmt.Sprintf("+%.2f%%", pct)
}

// Summary renders the final one-line report for runs that produced output.
func Summary(report convergence.Report) string {
	return fmt.Sprintf(
		"%s: wrote %s; final size %s (target %s, delta %s); iterations %d/%d; final bitrate %.0f kbps; total time %s.",
		textutil.Ternary(report.Success, "Success", "Partial"),
		report.OutputPath,
		textutil.FormatBytes(report.SizeBytes),
		textutil.FormatBytes(report.TargetSizeBytes),
		textutil.FormatSignedBytes(report.DeltaBytes()),
		report.IterationsUsed,
		report.MaxIterations,
		report.FinalBitrateKbps,
		textutil.FormatDuration(report.Elapsed),
	)
}

// ExhaustedNotice renders the reason a partial result was kept as a sentence.
func ExhaustedNotice(reason string) string {
	reason = strings.TrimSuffix(strings.TrimSpace(reason), ".")
	if reason == "" {
		reason = "max iterations reached, using best result under target"
	}
	return strings.ToUpper(reason[:1]) + reason[1:] + "."
}

// StateLabel turns a terminal state into display text, e.g. "Already Under Target".
func StateLabel(state string) string {
	state = strings.TrimSpace(strings.ReplaceAll(state, "_", " "))
	if state == "" {
		return "Unknown"
	}
	return cases.Title(language.Und).String(state)
}
