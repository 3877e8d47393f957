package service

import (
	"fmt"
	"testing"

	"servechat/internal/domain"
)

func makeMessages(n int) []domain.ChatMessage {
	msgs := make([]domain.ChatMessage, n)
	for i := range msgs {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		msgs[i] = domain.ChatMessage{Role: role, Content: fmt.Sprintf("m%d", i)}
	}
	return msgs
}

func TestBuildContextWindow(t *testing.T) {
	for _, n := range []int{0, 1, 5, 12, 13, 40} {
		for _, maxTurns := range []int{-1, 0, 1, 4, 12} {
			msgs := makeMessages(n)
			got := BuildContextWindow(msgs, maxTurns)

			if maxTurns <= 0 {
				if len(got) != n {
					t.Fatalf("n=%d max=%d: expected identity, got %d", n, maxTurns, len(got))
				}
				continue
			}
			want := n
			if maxTurns < n {
				want = maxTurns
			}
			if len(got) != want {
				t.Fatalf("n=%d max=%d: expected %d messages, got %d", n, maxTurns, want, len(got))
			}
			for i := range got {
				if got[i] != msgs[n-want+i] {
					t.Fatalf("n=%d max=%d: order mismatch at %d", n, maxTurns, i)
				}
			}
		}
	}
}

func TestBuildContextWindowDropsLeadingSystem(t *testing.T) {
	msgs := append([]domain.ChatMessage{{Role: domain.RoleSystem, Content: "be brief"}}, makeMessages(4)...)
	got := BuildContextWindow(msgs, 2)
	for _, m := range got {
		if m.Role == domain.RoleSystem {
			t.Fatalf("system message is not kept outside the window")
		}
	}
}

func TestPricingCost(t *testing.T) {
	p := Pricing{PromptPer1K: 0.5, CompletionPer1K: 1.5}
	if got := p.Cost(1000, 1000); got != 2.0 {
		t.Fatalf("expected 2.0, got %v", got)
	}
	if got := p.Cost(0, 0); got != 0 {
		t.Fatalf("expected zero cost, got %v", got)
	}
	if got := (Pricing{}).Cost(12345, 678); got != 0 {
		t.Fatalf("expected zero cost with default prices, got %v", got)
	}
	if got := p.Cost(500, 2000); got != 3.25 {
		t.Fatalf("expected 3.25, got %v", got)
	}
}
