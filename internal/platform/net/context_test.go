package net_test

import (
	"context"
	"testing"

	pnet "ordercast/internal/platform/net"
)

func TestWithRequest_And_RequestID(t *testing.T) {
	base := context.Background()

	t.Run("sets request id", func(t *testing.T) {
		ctx := pnet.WithRequest(base, "req-123")

		if got := pnet.RequestID(ctx); got != "req-123" {
			t.Fatalf("RequestID got %q want %q", got, "req-123")
		}
	})

	t.Run("empty id returns same ctx and empty getter", func(t *testing.T) {
		ctx := pnet.WithRequest(base, "")

		// should be the same reference since nothing was set
		if ctx != base {
			t.Fatalf("expected ctx to be unchanged when id empty")
		}
		if got := pnet.RequestID(ctx); got != "" {
			t.Fatalf("RequestID got %q want empty", got)
		}
	})
}
