package domain

import "time"

// Usage replica el objeto usage que devuelve el endpoint de serving.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageEvent registra una invocacion del modelo y su costo calculado.
type UsageEvent struct {
	ID             string            `json:"event_id"`
	ConversationID string            `json:"conversation_id"`
	UserID         string            `json:"user_id"`
	Model          string            `json:"model"`
	TokensIn       int               `json:"tokens_in"`
	TokensOut      int               `json:"tokens_out"`
	Cost           float64           `json:"cost"`
	CreatedAt      time.Time         `json:"created_at"`
	Meta           map[string]string `json:"meta,omitempty"`
}

type UsageTotals struct {
	Conversations int64   `json:"conversations"`
	Events        int64   `json:"events"`
	TokensIn      int64   `json:"tokens_in"`
	TokensOut     int64   `json:"tokens_out"`
	Cost          float64 `json:"cost"`
}

type DailyUsage struct {
	Day       time.Time `json:"day"`
	TokensIn  int64     `json:"tokens_in"`
	TokensOut int64     `json:"tokens_out"`
	Tokens    int64     `json:"tokens"`
	Cost      float64   `json:"cost"`
}

type ModelUsage struct {
	Model  string  `json:"model"`
	Events int64   `json:"events"`
	Tokens int64   `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// UsageSummary alimenta la vista de analitica.
type UsageSummary struct {
	Totals  UsageTotals  `json:"totals"`
	ByDay   []DailyUsage `json:"by_day"`
	ByModel []ModelUsage `json:"by_model"`
}
