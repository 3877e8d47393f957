package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

const (
	MessageStatusOK    = "ok"
	MessageStatusError = "error"
)

// Message es append-only: nunca se modifica despues de insertarse.
type Message struct {
	ID             string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	TokensIn       int       `json:"tokens_in"`
	TokensOut      int       `json:"tokens_out"`
	CreatedAt      time.Time `json:"created_at"`
	Status         string    `json:"status"`
}

// ChatMessage es la forma que viaja al endpoint de serving.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IsValidRole indica si el rol es aceptado por el modelo.
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
