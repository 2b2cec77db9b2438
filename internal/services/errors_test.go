package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"squash/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrProbe, "probe", "ffprobe", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrProbe) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"probe", "ffprobe", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, services.ExitOK},
		{"validation", services.Wrap(services.ErrValidation, "cli", "", "bad size", nil), services.ExitFailure},
		{"cancelled marker", services.Wrap(services.ErrCancelled, "encode", "", "interrupted", nil), services.ExitCancelled},
		{"context canceled", fmt.Errorf("encode: %w", context.Canceled), services.ExitCancelled},
		{"convergence", services.Wrap(services.ErrConvergence, "search", "", "no result", nil), services.ExitFailure},
	}
	for _, tc := range cases {
		if got := services.ExitCode(tc.err); got != tc.want {
			t.Fatalf("%s: expected exit %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestTypedErrorsMatchMarkers(t *testing.T) {
	missing := &services.MissingToolError{Tool: "FFmpeg", Command: "ffmpeg", Remediation: "install ffmpeg"}
	if !errors.Is(missing, services.ErrMissingTool) {
		t.Fatal("expected missing tool error to match marker")
	}
	if !strings.Contains(missing.Error(), "install ffmpeg") {
		t.Fatalf("expected remediation in message, got %q", missing.Error())
	}

	cause := errors.New("exit status 1")
	encode := &services.EncodeFailureError{ExitCode: 1, LastDiagnostic: "Unknown encoder 'libx265'", Err: cause}
	wrapped := fmt.Errorf("iteration 2: %w", encode)
	if !errors.Is(wrapped, services.ErrEncode) {
		t.Fatal("expected encode failure to match marker")
	}
	if !errors.Is(wrapped, cause) {
		t.Fatal("expected encode failure to unwrap to cause")
	}
	if !strings.Contains(encode.Error(), "Unknown encoder") {
		t.Fatalf("expected diagnostic line in message, got %q", encode.Error())
	}
}
