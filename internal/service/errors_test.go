package service_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shibakov/calroies-info-ms/internal/service"
)

func TestKindOfAndPublicMessage(t *testing.T) {
	t.Parallel()

	upstream := fmt.Errorf("resolve: %w", &service.Error{Kind: service.KindUpstreamFatal, Msg: "macro estimation failed", Err: errors.New("status 502 from api.openai.com")})
	if service.KindOf(upstream) != service.KindUpstreamFatal {
		t.Fatalf("expected upstream_fatal, got %s", service.KindOf(upstream))
	}
	if msg := service.PublicMessage(upstream); msg != "macro estimation failed" {
		t.Fatalf("expected public message without cause, got %q", msg)
	}

	raw := errors.New("database is locked")
	if service.KindOf(raw) != service.KindStorage {
		t.Fatalf("expected unclassified error to count as storage")
	}
	if msg := service.PublicMessage(raw); msg != "internal storage error" {
		t.Fatalf("expected generic storage message, got %q", msg)
	}
	if service.KindOf(nil) != "" || service.PublicMessage(nil) != "" {
		t.Fatalf("expected empty kind and message for nil")
	}
}
