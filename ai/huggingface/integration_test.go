//go:build integration
// +build integration

package huggingface

import (
	"context"
	"os"
	"testing"
	"time"
)

// Integration tests that hit the real Hugging Face router
// Run with: go test -tags=integration ./ai/huggingface
// Requires: HF_API_TOKEN environment variable

func TestIntegration_RealAPI(t *testing.T) {
	apiToken := os.Getenv("HF_API_TOKEN")
	if apiToken == "" {
		t.Skip("HF_API_TOKEN not set, skipping integration tests")
	}

	client := NewClient(Config{
		APIToken: apiToken,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	got := client.Generate(ctx, "Reply with the single word: hello", 20, 0.1)
	if got == "" {
		t.Error("expected non-empty completion from real API")
	}
	t.Logf("Response: %s", got)
}
