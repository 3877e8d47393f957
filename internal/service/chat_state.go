package service

import (
	"time"

	"github.com/google/uuid"

	"servechat/internal/domain"
)

// ChatState es el estado de una sesion de chat: conversacion activa, titulo,
// endpoint elegido y mensajes en memoria.
type ChatState struct {
	SessionID      string               `json:"session_id"`
	UserID         string               `json:"user_id"`
	ConversationID string               `json:"conversation_id"`
	Title          string               `json:"title"`
	Endpoint       string               `json:"endpoint"`
	Messages       []domain.ChatMessage `json:"messages"`
	Persisted      bool                 `json:"persisted"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// NewChatState arranca una sesion con una conversacion nueva.
func NewChatState(userID, endpoint string) *ChatState {
	now := time.Now().UTC()
	s := &ChatState{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Endpoint:  endpoint,
		CreatedAt: now,
	}
	s.Reset()
	return s
}

// Reset descarta la conversacion activa; conserva sesion, usuario y endpoint.
func (s *ChatState) Reset() {
	s.ConversationID = uuid.NewString()
	s.Title = domain.DefaultConversationTitle
	s.Messages = []domain.ChatMessage{}
	s.Persisted = false
	s.touch()
}

// Load reemplaza la conversacion activa por una del historial.
func (s *ChatState) Load(conv domain.Conversation, messages []domain.Message) {
	s.ConversationID = conv.ID
	s.Title = conv.Title
	if s.Title == "" {
		s.Title = domain.DefaultConversationTitle
	}
	if conv.Model != "" {
		s.Endpoint = conv.Model
	}
	s.Messages = make([]domain.ChatMessage, 0, len(messages))
	for _, m := range messages {
		s.Messages = append(s.Messages, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}
	s.Persisted = true
	s.touch()
}

func (s *ChatState) AddMessage(role, content string) {
	s.Messages = append(s.Messages, domain.ChatMessage{Role: role, Content: content})
	s.touch()
}

// IsNewConversation indica que ya hubo un intercambio y el titulo sigue por defecto.
func (s *ChatState) IsNewConversation() bool {
	return s.Title == domain.DefaultConversationTitle && len(s.Messages) >= 2
}

// FirstUserPrompt devuelve el primer mensaje del usuario, para titulos por defecto.
func (s *ChatState) FirstUserPrompt() string {
	for _, m := range s.Messages {
		if m.Role == domain.RoleUser {
			return m.Content
		}
	}
	return ""
}

func (s *ChatState) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Clone devuelve una copia profunda para no compartir el slice de mensajes.
func (s *ChatState) Clone() *ChatState {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]domain.ChatMessage(nil), s.Messages...)
	return &c
}
