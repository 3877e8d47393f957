package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"servechat/internal/config"
	"servechat/internal/domain"
)

func TestNewWithoutBackends(t *testing.T) {
	cfg := &config.Config{
		Schema:        "app",
		EnableLogging: true,
		SessionTTL:    time.Hour,
		ChatRateLimit: 5,
		MaxTurns:      12,
	}
	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	if a.Warehouse != nil || a.Conversations.Enabled() || a.Analytics.Enabled() {
		t.Fatalf("persistence must be disabled without DATABASE_URL")
	}
	if a.Chat.Catalog().Configured() {
		t.Fatalf("no endpoint should be configured")
	}
	if a.Limiter == nil || a.Sessions == nil {
		t.Fatalf("expected in-memory limiter and sessions")
	}
	if err := a.PingWarehouse(context.Background()); err == nil {
		t.Fatalf("expected ping error without warehouse")
	}

	session, _, err := a.Sessions.Create(context.Background(), "ana@example.com", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := a.Sessions.Authenticate(session.Token, "ana@example.com"); err != nil {
		t.Fatalf("random secret must still sign valid tokens: %v", err)
	}
}

func TestResolveIdentityUsesHeaders(t *testing.T) {
	a := &App{Config: &config.Config{}}
	h := http.Header{}
	h.Set("X-Forwarded-Email", "ana@example.com")
	id := a.ResolveIdentity(h)
	if id.UserID != "ana@example.com" || id.AuthMode != domain.AuthModeApp {
		t.Fatalf("unexpected identity %+v", id)
	}
}
