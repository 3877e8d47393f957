package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"servechat/internal/domain"
	"servechat/internal/repository"
)

const maxTitleRunes = 200

// ConversationService persiste intercambios y expone el historial.
// Sin repositorios queda deshabilitado y devuelve ErrPersistenceDisabled.
type ConversationService struct {
	logger        *zap.Logger
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	usage         repository.UsageRepository
	pricing       Pricing
	now           func() time.Time
}

func NewConversationService(
	logger *zap.Logger,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	usage repository.UsageRepository,
	pricing Pricing,
) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		logger:        logger,
		conversations: conversations,
		messages:      messages,
		usage:         usage,
		pricing:       pricing,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *ConversationService) Enabled() bool {
	return s != nil && s.conversations != nil && s.messages != nil && s.usage != nil
}

// Cost aplica el pricing configurado.
func (s *ConversationService) Cost(tokensIn, tokensOut int) float64 {
	if s == nil {
		return 0
	}
	return s.pricing.Cost(tokensIn, tokensOut)
}

// Exchange es un turno completo: prompt del usuario y respuesta del modelo.
type Exchange struct {
	ConversationID string
	Title          string
	Identity       domain.Identity
	Endpoint       string
	Prompt         string
	Reply          string
	Status         string
	Usage          domain.Usage
}

// LogExchange asegura la conversacion y agrega ambos mensajes y el evento de uso.
// Los turnos con error de serving se guardan sin evento de uso.
func (s *ConversationService) LogExchange(ctx context.Context, ex Exchange) (domain.UsageEvent, error) {
	if !s.Enabled() {
		return domain.UsageEvent{}, ErrPersistenceDisabled
	}
	ex.ConversationID = strings.TrimSpace(ex.ConversationID)
	if ex.ConversationID == "" || strings.TrimSpace(ex.Prompt) == "" {
		return domain.UsageEvent{}, ErrInvalidInput
	}
	if ex.Status == "" {
		ex.Status = domain.MessageStatusOK
	}
	userID := ex.Identity.UserID
	if userID == "" {
		userID = domain.UnknownUserID
	}

	now := s.now()
	meta := identityMeta(ex.Identity)
	conv := domain.Conversation{
		ID:        ex.ConversationID,
		UserID:    userID,
		TenantID:  domain.DefaultTenantID,
		Title:     ex.Title,
		Model:     ex.Endpoint,
		CreatedAt: now,
		UpdatedAt: now,
		Meta:      meta,
	}
	if err := s.conversations.Ensure(ctx, conv); err != nil {
		return domain.UsageEvent{}, persistenceError("ensure conversation", err)
	}
	if err := s.conversations.UpdateModel(ctx, ex.ConversationID, ex.Endpoint); err != nil {
		return domain.UsageEvent{}, persistenceError("update conversation model", err)
	}

	userMsg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: ex.ConversationID,
		Role:           domain.RoleUser,
		Content:        ex.Prompt,
		CreatedAt:      now,
		Status:         domain.MessageStatusOK,
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return domain.UsageEvent{}, persistenceError("log user message", err)
	}
	assistantMsg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: ex.ConversationID,
		Role:           domain.RoleAssistant,
		Content:        ex.Reply,
		TokensIn:       ex.Usage.PromptTokens,
		TokensOut:      ex.Usage.CompletionTokens,
		// created_at ordena el historial; el warehouse guarda microsegundos.
		CreatedAt: now.Add(time.Microsecond),
		Status:    ex.Status,
	}
	if err := s.messages.Create(ctx, assistantMsg); err != nil {
		return domain.UsageEvent{}, persistenceError("log assistant message", err)
	}

	if ex.Status != domain.MessageStatusOK {
		return domain.UsageEvent{}, nil
	}

	event := domain.UsageEvent{
		ID:             uuid.NewString(),
		ConversationID: ex.ConversationID,
		UserID:         userID,
		Model:          ex.Endpoint,
		TokensIn:       ex.Usage.PromptTokens,
		TokensOut:      ex.Usage.CompletionTokens,
		Cost:           s.pricing.Cost(ex.Usage.PromptTokens, ex.Usage.CompletionTokens),
		CreatedAt:      now,
		Meta:           meta,
	}
	if err := s.usage.Create(ctx, event); err != nil {
		return domain.UsageEvent{}, persistenceError("log usage", err)
	}
	return event, nil
}

func identityMeta(id domain.Identity) map[string]string {
	meta := map[string]string{}
	if id.Email != "" || id.SQLUser != "" {
		meta["email"] = id.Email
		meta["sql_user"] = id.SQLUser
	}
	return meta
}

func (s *ConversationService) List(ctx context.Context, filter domain.ConversationFilter) ([]domain.ConversationSummary, error) {
	if !s.Enabled() {
		return nil, ErrPersistenceDisabled
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Limit = repository.ClampListLimit(filter.Limit)
	items, err := s.conversations.List(ctx, filter)
	if err != nil {
		return nil, persistenceError("list conversations", err)
	}
	if items == nil {
		items = []domain.ConversationSummary{}
	}
	return items, nil
}

// Meta devuelve la conversacion si pertenece a userID.
func (s *ConversationService) Meta(ctx context.Context, userID, conversationID string) (domain.Conversation, error) {
	if !s.Enabled() {
		return domain.Conversation{}, ErrPersistenceDisabled
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return domain.Conversation{}, ErrInvalidInput
	}
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return domain.Conversation{}, persistenceError("get conversation", err)
	}
	if userID != "" && conv.UserID != userID {
		return domain.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

func (s *ConversationService) LoadMessages(ctx context.Context, userID, conversationID string) ([]domain.Message, error) {
	conv, err := s.Meta(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByConversationID(ctx, conv.ID)
	if err != nil {
		return nil, persistenceError("list messages", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// Delete borra la conversacion con sus mensajes y eventos de uso.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	conv, err := s.Meta(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if err := s.conversations.Delete(ctx, conv.ID); err != nil {
		return persistenceError("delete conversation", err)
	}
	s.logger.Info("conversation deleted", zap.String("conversation_id", conv.ID), zap.String("user_id", userID))
	return nil
}

func (s *ConversationService) Rename(ctx context.Context, conversationID, title string) error {
	if !s.Enabled() {
		return ErrPersistenceDisabled
	}
	title, err := NormalizeTitle(title)
	if err != nil {
		return err
	}
	if err := s.conversations.UpdateTitle(ctx, conversationID, title); err != nil {
		return persistenceError("update conversation title", err)
	}
	return nil
}

func (s *ConversationService) SwitchModel(ctx context.Context, conversationID, model string) error {
	if !s.Enabled() {
		return ErrPersistenceDisabled
	}
	if strings.TrimSpace(model) == "" {
		return ErrInvalidInput
	}
	if err := s.conversations.UpdateModel(ctx, conversationID, model); err != nil {
		return persistenceError("update conversation model", err)
	}
	return nil
}

// Export arma el JSON descargable de una conversacion guardada.
func (s *ConversationService) Export(ctx context.Context, userID, conversationID string) ([]byte, error) {
	conv, err := s.Meta(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByConversationID(ctx, conv.ID)
	if err != nil {
		return nil, persistenceError("list messages", err)
	}

	export := domain.ConversationExport{
		Conversation: &conv,
		Messages:     make([]domain.ExportedMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		export.Messages = append(export.Messages, domain.ExportedMessage{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return json.MarshalIndent(export, "", "  ")
}

// ExportState exporta la conversacion en memoria cuando no hay persistencia.
func ExportState(state *ChatState) ([]byte, error) {
	if state == nil {
		return nil, ErrInvalidInput
	}
	export := domain.ConversationExport{
		Conversation: &domain.Conversation{
			ID:        state.ConversationID,
			UserID:    state.UserID,
			TenantID:  domain.DefaultTenantID,
			Title:     state.Title,
			Model:     state.Endpoint,
			CreatedAt: state.CreatedAt,
			UpdatedAt: state.UpdatedAt,
		},
		Messages: make([]domain.ExportedMessage, 0, len(state.Messages)),
	}
	for _, m := range state.Messages {
		export.Messages = append(export.Messages, domain.ExportedMessage{Role: m.Role, Content: m.Content})
	}
	return json.MarshalIndent(export, "", "  ")
}

// NormalizeTitle valida un titulo ingresado por el usuario.
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	if title == "" || utf8.RuneCountInString(title) > maxTitleRunes {
		return "", ErrInvalidInput
	}
	return title, nil
}
