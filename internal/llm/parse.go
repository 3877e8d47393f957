package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"servechat/internal/domain"
)

// ParseResponse normaliza la respuesta del endpoint sin fallar nunca.
// Orden: choices[0].message, messages[-1], output_text, response/content/text/output
// y por ultimo el payload completo serializado.
func ParseResponse(body []byte) Reply {
	reply := Reply{Role: domain.RoleAssistant}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return reply
	}

	var payload any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		reply.Content = strings.ToValidUTF8(string(trimmed), "\uFFFD")
		return reply
	}

	switch v := payload.(type) {
	case string:
		reply.Content = v
		return reply
	case map[string]any:
		reply.Usage = parseUsage(v["usage"])
		if msg, ok := messageFromChoices(v["choices"]); ok {
			applyMessage(&reply, msg)
			return reply
		}
		if msg, ok := lastMessage(v["messages"]); ok {
			applyMessage(&reply, msg)
			return reply
		}
		for _, key := range []string{"output_text", "response", "content", "text", "output"} {
			if s, ok := v[key].(string); ok && s != "" {
				reply.Content = s
				return reply
			}
		}
	}

	reply.Content = stringify(payload)
	return reply
}

func messageFromChoices(raw any) (map[string]any, bool) {
	choices, ok := raw.([]any)
	if !ok || len(choices) == 0 {
		return nil, false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return nil, false
	}
	if msg, ok := first["message"].(map[string]any); ok {
		return msg, true
	}
	if text, ok := first["text"].(string); ok {
		return map[string]any{"content": text}, true
	}
	return nil, false
}

func lastMessage(raw any) (map[string]any, bool) {
	msgs, ok := raw.([]any)
	if !ok || len(msgs) == 0 {
		return nil, false
	}
	msg, ok := msgs[len(msgs)-1].(map[string]any)
	return msg, ok
}

func applyMessage(reply *Reply, msg map[string]any) {
	if role, ok := msg["role"].(string); ok && role != "" {
		reply.Role = role
	}
	switch c := msg["content"].(type) {
	case nil:
	case string:
		reply.Content = c
	case []any:
		reply.Content = joinContentBlocks(c)
	default:
		reply.Content = stringify(c)
	}
}

// Algunos endpoints devuelven content como lista de bloques {"type":"text","text":...}.
func joinContentBlocks(blocks []any) string {
	var parts []string
	for _, b := range blocks {
		switch block := b.(type) {
		case string:
			parts = append(parts, block)
		case map[string]any:
			if text, ok := block["text"].(string); ok {
				parts = append(parts, text)
			}
		}
	}
	if len(parts) == 0 {
		return stringify(blocks)
	}
	return strings.Join(parts, "")
}

func parseUsage(raw any) domain.Usage {
	m, ok := raw.(map[string]any)
	if !ok {
		return domain.Usage{}
	}
	u := domain.Usage{
		PromptTokens:     toInt(m["prompt_tokens"]),
		CompletionTokens: toInt(m["completion_tokens"]),
		TotalTokens:      toInt(m["total_tokens"]),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func toInt(v any) int {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(n)
	}
	return 0
}

func stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
