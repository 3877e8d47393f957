package service

import "servechat/internal/domain"

// BuildContextWindow devuelve los ultimos maxTurns mensajes en su orden original.
// Con maxTurns <= 0 o una lista corta devuelve la misma lista.
// No se preserva un mensaje system inicial si queda fuera de la ventana.
func BuildContextWindow(messages []domain.ChatMessage, maxTurns int) []domain.ChatMessage {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}

// Pricing tiene los precios por cada 1000 tokens de entrada y salida.
type Pricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// Cost es una funcion pura de los tokens; nunca se recalcula despues.
func (p Pricing) Cost(tokensIn, tokensOut int) float64 {
	return (float64(tokensIn)/1000.0)*p.PromptPer1K + (float64(tokensOut)/1000.0)*p.CompletionPer1K
}
