package services_test

import (
	"context"
	"testing"

	"squash/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithStage(ctx, "encode")
	ctx = services.WithInput(ctx, "/videos/in.mp4")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "encode" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if input, ok := services.InputFromContext(ctx); !ok || input != "/videos/in.mp4" {
		t.Fatalf("unexpected input: %v %v", input, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
