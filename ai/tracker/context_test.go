package tracker

import (
	"context"
	"testing"
)

func TestWithAttribution(t *testing.T) {
	ctx := WithAttribution(context.Background(), Attribution{
		OperationType: "qualification",
		EntityType:    "lead",
		EntityID:      "lead-1",
	})

	attr, ok := AttributionFrom(ctx)
	if !ok {
		t.Fatal("expected attribution in context")
	}
	if attr.OperationType != "qualification" {
		t.Errorf("OperationType = %q, want %q", attr.OperationType, "qualification")
	}
	if attr.EntityType != "lead" {
		t.Errorf("EntityType = %q, want %q", attr.EntityType, "lead")
	}
	if attr.EntityID != "lead-1" {
		t.Errorf("EntityID = %q, want %q", attr.EntityID, "lead-1")
	}
}

func TestAttributionFrom_Empty(t *testing.T) {
	if _, ok := AttributionFrom(context.Background()); ok {
		t.Error("expected no attribution in bare context")
	}
}
