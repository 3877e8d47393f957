package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"servechat/internal/domain"
)

var testIdentity = domain.Identity{Email: "user@example.com", SQLUser: "sql_user", UserID: "user@example.com", AuthMode: domain.AuthModeApp}

func logTestExchange(t *testing.T, svc *ConversationService, convID string) domain.UsageEvent {
	t.Helper()
	event, err := svc.LogExchange(context.Background(), Exchange{
		ConversationID: convID,
		Title:          domain.DefaultConversationTitle,
		Identity:       testIdentity,
		Endpoint:       "ep",
		Prompt:         "hola",
		Reply:          "buenas",
		Usage:          domain.Usage{PromptTokens: 1000, CompletionTokens: 500},
	})
	if err != nil {
		t.Fatalf("log exchange failed: %v", err)
	}
	return event
}

func TestConversationServiceDisabled(t *testing.T) {
	svc := NewConversationService(nil, nil, nil, nil, Pricing{})
	ctx := context.Background()
	if svc.Enabled() {
		t.Fatalf("expected disabled service")
	}
	if _, err := svc.LogExchange(ctx, Exchange{ConversationID: "c", Prompt: "p"}); !errors.Is(err, ErrPersistenceDisabled) {
		t.Fatalf("expected ErrPersistenceDisabled, got %v", err)
	}
	if _, err := svc.List(ctx, domain.ConversationFilter{}); !errors.Is(err, ErrPersistenceDisabled) {
		t.Fatalf("expected ErrPersistenceDisabled, got %v", err)
	}
	if err := svc.Delete(ctx, "u", "c"); !errors.Is(err, ErrPersistenceDisabled) {
		t.Fatalf("expected ErrPersistenceDisabled, got %v", err)
	}
	var nilSvc *ConversationService
	if nilSvc.Enabled() || nilSvc.Cost(1000, 1000) != 0 {
		t.Fatalf("nil service must be disabled")
	}
}

func TestConversationServiceLogExchange(t *testing.T) {
	fw := newFakeWarehouse()
	svc := fw.service()

	event := logTestExchange(t, svc, "c1")
	if event.Cost != 2.0 {
		t.Fatalf("expected cost 1*1 + 0.5*2 = 2, got %v", event.Cost)
	}
	conv := fw.conversations["c1"]
	if conv.UserID != "user@example.com" || conv.Model != "ep" || conv.TenantID != domain.DefaultTenantID {
		t.Fatalf("unexpected conversation %+v", conv)
	}
	if conv.Meta["email"] != "user@example.com" || conv.Meta["sql_user"] != "sql_user" {
		t.Fatalf("expected identity meta, got %+v", conv.Meta)
	}
	if len(fw.messages) != 2 || fw.messages[0].Role != domain.RoleUser || fw.messages[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected messages %+v", fw.messages)
	}
	if fw.messages[1].TokensIn != 1000 || fw.messages[1].TokensOut != 500 {
		t.Fatalf("assistant message must carry token counts")
	}
	if !fw.messages[0].CreatedAt.Before(fw.messages[1].CreatedAt) {
		t.Fatalf("assistant message must sort after the prompt")
	}
	if len(fw.events) != 1 {
		t.Fatalf("expected one usage event, got %d", len(fw.events))
	}

	logTestExchange(t, svc, "c1")
	if len(fw.conversations) != 1 || fw.ensureCalls != 2 {
		t.Fatalf("second exchange must reuse the conversation")
	}

	_, err := svc.LogExchange(context.Background(), Exchange{
		ConversationID: "c1",
		Identity:       testIdentity,
		Endpoint:       "ep",
		Prompt:         "otra",
		Reply:          "(serving error: boom)",
		Status:         domain.MessageStatusError,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fw.events) != 2 {
		t.Fatalf("serving errors must not create usage events")
	}
	if fw.messages[len(fw.messages)-1].Status != domain.MessageStatusError {
		t.Fatalf("expected error status on assistant message")
	}

	if _, err := svc.LogExchange(context.Background(), Exchange{ConversationID: " ", Prompt: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	fw.err = errors.New("warehouse down")
	_, err = svc.LogExchange(context.Background(), Exchange{ConversationID: "c2", Prompt: "x"})
	if !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
}

func TestConversationServiceDeleteLeavesNoOrphans(t *testing.T) {
	fw := newFakeWarehouse()
	svc := fw.service()
	ctx := context.Background()

	logTestExchange(t, svc, "c1")
	logTestExchange(t, svc, "c2")

	if err := svc.Delete(ctx, "someone-else", "c1"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
	if err := svc.Delete(ctx, testIdentity.UserID, "c1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := svc.Meta(ctx, testIdentity.UserID, "c1"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected deleted conversation, got %v", err)
	}
	for _, m := range fw.messages {
		if m.ConversationID == "c1" {
			t.Fatalf("orphan message remains: %+v", m)
		}
	}
	for _, e := range fw.events {
		if e.ConversationID == "c1" {
			t.Fatalf("orphan usage event remains: %+v", e)
		}
	}
	msgs, err := svc.LoadMessages(ctx, testIdentity.UserID, "c2")
	if err != nil || len(msgs) != 2 {
		t.Fatalf("other conversations must survive, got %d %v", len(msgs), err)
	}
}

func TestConversationServiceListRenameExport(t *testing.T) {
	fw := newFakeWarehouse()
	svc := fw.service()
	ctx := context.Background()
	logTestExchange(t, svc, "c1")

	items, err := svc.List(ctx, domain.ConversationFilter{UserID: testIdentity.UserID})
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one conversation, got %v %v", items, err)
	}
	if items[0].Messages != 2 || items[0].TokensIn != 1000 || items[0].Cost != 2.0 {
		t.Fatalf("unexpected summary %+v", items[0])
	}

	if err := svc.Rename(ctx, "c1", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank title, got %v", err)
	}
	if err := svc.Rename(ctx, "missing", "x"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Rename(ctx, "c1", "Viaje a Roma"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if err := svc.SwitchModel(ctx, "c1", "claude"); err != nil {
		t.Fatalf("switch model failed: %v", err)
	}

	raw, err := svc.Export(ctx, testIdentity.UserID, "c1")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var export domain.ConversationExport
	if err := json.Unmarshal(raw, &export); err != nil {
		t.Fatalf("invalid export JSON: %v", err)
	}
	if export.Conversation == nil || export.Conversation.Title != "Viaje a Roma" || export.Conversation.Model != "claude" {
		t.Fatalf("unexpected exported conversation %+v", export.Conversation)
	}
	if len(export.Messages) != 2 || export.Messages[0].Content != "hola" || export.Messages[0].CreatedAt == "" {
		t.Fatalf("unexpected exported messages %+v", export.Messages)
	}
}

func TestExportState(t *testing.T) {
	state := NewChatState("u1", "ep")
	state.AddMessage(domain.RoleUser, "hola")
	raw, err := ExportState(state)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var export domain.ConversationExport
	if err := json.Unmarshal(raw, &export); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if export.Conversation.ID != state.ConversationID || len(export.Messages) != 1 {
		t.Fatalf("unexpected export %+v", export)
	}
}
