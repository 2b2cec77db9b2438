package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrProbe         = errors.New("probe failure")
	ErrMissingTool   = errors.New("missing tool")
	ErrEncode        = errors.New("encode failure")
	ErrConvergence   = errors.New("convergence failure")
	ErrCancelled     = errors.New("cancelled")
)

// Exit codes reported by the squash binary.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitCancelled = 130
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrEncode
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsCancelled reports whether err stems from a user interrupt rather than a failure.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// ExitCode maps a run error onto the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsCancelled(err):
		return ExitCancelled
	default:
		return ExitFailure
	}
}

// MissingToolError reports an external binary that could not be located.
type MissingToolError struct {
	Tool        string
	Command     string
	Remediation string
}

func (e *MissingToolError) Error() string {
	msg := fmt.Sprintf("%s not found (looked for %q)", e.Tool, e.Command)
	if hint := strings.TrimSpace(e.Remediation); hint != "" {
		msg += "; " + hint
	}
	return msg
}

func (e *MissingToolError) Is(target error) bool {
	return target == ErrMissingTool
}

// EncodeFailureError reports a non-zero encoder exit along with the last
// diagnostic line the encoder printed.
type EncodeFailureError struct {
	ExitCode       int
	LastDiagnostic string
	Err            error
}

func (e *EncodeFailureError) Error() string {
	msg := fmt.Sprintf("ffmpeg failed with exit code %d", e.ExitCode)
	if line := strings.TrimSpace(e.LastDiagnostic); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *EncodeFailureError) Unwrap() error {
	return e.Err
}

func (e *EncodeFailureError) Is(target error) bool {
	return target == ErrEncode
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
