package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"servechat/internal/domain"
	"servechat/internal/llm"
)

const (
	titleMaxRunes   = 60
	titleMaxWords   = 6
	titleMaxTokens  = 16
	titleContextLen = 4
	titleSystemText = "Generate a concise title (<= 6 words) for this conversation. Return title only."
)

// DefaultTitleFromPrompt arma un titulo con las primeras seis palabras del prompt.
func DefaultTitleFromPrompt(prompt string) string {
	prompt = strings.TrimSpace(strings.ReplaceAll(prompt, "\n", " "))
	if prompt == "" {
		return domain.DefaultConversationTitle
	}
	words := strings.Fields(prompt)
	if len(words) <= titleMaxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleMaxWords], " ") + "…"
}

// TitleGenerator pide al modelo un titulo corto; ante cualquier error usa el fallback.
type TitleGenerator struct {
	client llm.ServingClient
	logger *zap.Logger
}

func NewTitleGenerator(client llm.ServingClient, logger *zap.Logger) *TitleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TitleGenerator{client: client, logger: logger}
}

func (g *TitleGenerator) Generate(ctx context.Context, endpoint string, messages []domain.ChatMessage, fallback string) string {
	fallback = truncateRunes(fallback, titleMaxRunes)
	if g == nil || g.client == nil || endpoint == "" {
		return fallback
	}

	prompt := make([]domain.ChatMessage, 0, titleContextLen+1)
	prompt = append(prompt, domain.ChatMessage{Role: domain.RoleSystem, Content: titleSystemText})
	if len(messages) > titleContextLen {
		messages = messages[:titleContextLen]
	}
	prompt = append(prompt, messages...)

	reply, err := g.client.Query(ctx, endpoint, prompt, llm.QueryOptions{MaxTokens: titleMaxTokens})
	if err != nil {
		g.logger.Warn("auto title failed", zap.String("endpoint", endpoint), zap.Error(err))
		return fallback
	}
	title := cleanLLMResponse(reply.Content)
	if title == "" {
		return fallback
	}
	return truncateRunes(title, titleMaxRunes)
}
