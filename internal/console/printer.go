package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Severity selects the arrow colour and output stream of a line.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeveritySuccess
)

const (
	prefix = "SQUASH"
	arrow  = "➤"
)

// Printer writes prefixed status lines. Error lines go to the error stream.
type Printer struct {
	out      io.Writer
	errOut   io.Writer
	colorize bool

	info    *color.Color
	warning *color.Color
	failure *color.Color
	success *color.Color
	bold    *color.Color
	dim     *color.Color
}

// NewPrinter builds a Printer; colorize toggles ANSI styling for every helper.
func NewPrinter(out, errOut io.Writer, colorize bool) *Printer {
	p := &Printer{
		out:      out,
		errOut:   errOut,
		colorize: colorize,
		info:     color.RGB(0x00, 0x92, 0xB8),
		warning:  color.RGB(0xF0, 0xB1, 0x00),
		failure:  color.RGB(0xE7, 0x00, 0x0B),
		success:  color.RGB(0x7C, 0xCF, 0x00),
		bold:     color.New(color.Bold),
		dim:      color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.info, p.warning, p.failure, p.success, p.bold, p.dim} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Colorize reports whether styling is enabled.
func (p *Printer) Colorize() bool { return p.colorize }

// Out is the standard output stream.
func (p *Printer) Out() io.Writer { return p.out }

// Format renders a line without writing it.
func (p *Printer) Format(sev Severity, message string) string {
	return fmt.Sprintf("%s %s: %s", p.severityColor(sev).Sprint(arrow), p.dim.Sprint(prefix), message)
}

// Writeln writes one complete line.
func (p *Printer) Writeln(sev Severity, message string) {
	w := p.out
	if sev == SeverityError {
		w = p.errOut
	}
	fmt.Fprintln(w, p.Format(sev, message))
}

// Writef is Writeln with formatting.
func (p *Printer) Writef(sev Severity, format string, args ...any) {
	p.Writeln(sev, fmt.Sprintf(format, args...))
}

func (p *Printer) Bold(text string) string    { return p.bold.Sprint(text) }
func (p *Printer) Dim(text string) string     { return p.dim.Sprint(text) }
func (p *Printer) Good(text string) string    { return p.success.Sprint(text) }
func (p *Printer) Bad(text string) string     { return p.failure.Sprint(text) }
func (p *Printer) Caution(text string) string { return p.warning.Sprint(text) }

func (p *Printer) severityColor(sev Severity) *color.Color {
	switch sev {
	case SeverityWarning:
		return p.warning
	case SeverityError:
		return p.failure
	case SeveritySuccess:
		return p.success
	default:
		return p.info
	}
}

// ShouldColorize reports whether writer is a terminal and NO_COLOR is unset.
func ShouldColorize(writer io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	return IsTerminal(writer)
}

// IsTerminal reports whether writer is an interactive terminal.
func IsTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
