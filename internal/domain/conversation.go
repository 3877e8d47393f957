package domain

import "time"

// DefaultConversationTitle es el titulo de una conversacion sin renombrar.
const DefaultConversationTitle = "New Chat"

// DefaultTenantID se usa mientras no exista multi-tenancy real.
const DefaultTenantID = "default"

type Conversation struct {
	ID        string            `json:"conversation_id"`
	UserID    string            `json:"user_id"`
	TenantID  string            `json:"tenant_id"`
	Title     string            `json:"title"`
	Model     string            `json:"model"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// ConversationSummary es una fila del historial con contadores agregados.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	Model          string    `json:"model"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Messages       int64     `json:"messages"`
	TokensIn       int64     `json:"tokens_in"`
	TokensOut      int64     `json:"tokens_out"`
	Cost           float64   `json:"cost"`
}

// ConversationFilter agrupa los criterios de busqueda del historial.
type ConversationFilter struct {
	UserID         string
	Search         string
	IncludeContent bool
	Limit          int
}

// ConversationExport es el documento JSON que se descarga desde el historial.
type ConversationExport struct {
	Conversation *Conversation     `json:"conversation,omitempty"`
	Messages     []ExportedMessage `json:"messages"`
}

type ExportedMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`
}
