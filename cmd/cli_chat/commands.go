package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"servechat/internal/domain"
	"servechat/internal/service"
)

const helpText = `Comandos:
  /new                 conversacion nueva
  /title <titulo>      renombrar la conversacion
  /model <endpoint>    cambiar de endpoint
  /models              listar endpoints
  /history [-c] [q]    historial; -c busca tambien en el contenido
  /load <id>           cargar una conversacion
  /delete <id>         borrar una conversacion
  /export [archivo]    exportar la conversacion activa a JSON
  /stats               uso y costo acumulado
  /test                probar el endpoint activo
  /quit                salir`

// chatCLI es el estado del chat de terminal sobre los mismos servicios del API.
type chatCLI struct {
	chat          *service.ChatService
	conversations *service.ConversationService
	analytics     *service.AnalyticsService
	id            domain.Identity
	state         *service.ChatState
	out           io.Writer
}

func (c *chatCLI) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *chatCLI) send(ctx context.Context, prompt string) error {
	turn, err := c.chat.Send(ctx, c.state, c.id, prompt)
	if err != nil {
		return err
	}
	c.printf("%s > %s\n", c.state.Endpoint, turn.Reply.Content)
	if turn.PersistErr != nil {
		c.printf("(no se pudo guardar el historial: %v)\n", turn.PersistErr)
	}
	if turn.TitleChanged {
		c.printf("[titulo: %s]\n", turn.Title)
	}
	return nil
}

// handleCommand ejecuta un comando /x; devuelve false cuando hay que salir.
func (c *chatCLI) handleCommand(ctx context.Context, input string) (bool, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(input), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "/quit", "/exit":
		return false, nil
	case "/help":
		c.printf("%s\n", helpText)
	case "/new":
		c.state.Reset()
		c.printf("Conversacion nueva: %s\n", c.state.ConversationID)
	case "/title":
		if err := c.chat.Rename(ctx, c.state, arg); err != nil {
			return true, err
		}
		c.printf("Titulo: %s\n", c.state.Title)
	case "/model":
		if err := c.chat.SwitchEndpoint(ctx, c.state, arg); err != nil {
			return true, fmt.Errorf("endpoint %q: %w", arg, err)
		}
		c.printf("Endpoint: %s\n", c.state.Endpoint)
	case "/models":
		for _, ep := range c.chat.Catalog().Endpoints {
			marker := " "
			if ep.ID == c.state.Endpoint {
				marker = "*"
			}
			c.printf("%s %s (%s)\n", marker, ep.Name, ep.ID)
		}
	case "/history":
		return true, c.history(ctx, arg)
	case "/load":
		if err := c.chat.LoadConversation(ctx, c.state, c.id.UserID, arg); err != nil {
			return true, err
		}
		c.printf("Cargada %q con %d mensajes\n", c.state.Title, len(c.state.Messages))
		for _, m := range c.state.Messages {
			c.printf("%s > %s\n", m.Role, m.Content)
		}
	case "/delete":
		if err := c.conversations.Delete(ctx, c.id.UserID, arg); err != nil {
			return true, err
		}
		if arg == c.state.ConversationID {
			c.state.Reset()
		}
		c.printf("Conversacion %s borrada\n", arg)
	case "/export":
		return true, c.export(ctx, arg)
	case "/stats":
		return true, c.stats(ctx)
	case "/test":
		result := c.chat.TestEndpoint(ctx, c.state.Endpoint)
		status := "OK"
		if !result.OK {
			status = "FALLO"
		}
		c.printf("%s [%s]: %s\n", result.Endpoint, status, result.Message)
	default:
		return true, fmt.Errorf("comando desconocido %s (usa /help)", cmd)
	}
	return true, nil
}

func (c *chatCLI) history(ctx context.Context, arg string) error {
	filter := domain.ConversationFilter{UserID: c.id.UserID}
	if rest, ok := strings.CutPrefix(arg, "-c"); ok && (rest == "" || rest[0] == ' ') {
		filter.IncludeContent = true
		arg = strings.TrimSpace(rest)
	}
	filter.Search = arg

	items, err := c.conversations.List(ctx, filter)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		c.printf("Sin conversaciones\n")
		return nil
	}
	for _, it := range items {
		c.printf("%s  %-30s  %-20s  %d msgs  %d tokens  $%.4f  %s\n",
			it.ConversationID, it.Title, it.Model, it.Messages,
			it.TokensIn+it.TokensOut, it.Cost, it.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func (c *chatCLI) export(ctx context.Context, path string) error {
	raw, err := c.chat.Export(ctx, c.state, c.id.UserID)
	if err != nil {
		return err
	}
	if path == "" {
		path = "conversation_" + c.state.ConversationID + ".json"
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return err
	}
	c.printf("Exportada a %s\n", path)
	return nil
}

func (c *chatCLI) stats(ctx context.Context) error {
	summary, err := c.analytics.Summary(ctx, c.id.UserID)
	if errors.Is(err, service.ErrPersistenceDisabled) {
		c.printf("Sin persistencia: no hay estadisticas\n")
		return nil
	}
	if err != nil {
		return err
	}
	t := summary.Totals
	c.printf("Conversaciones: %d | Tokens: %d in / %d out | Costo: $%.4f\n",
		t.Conversations, t.TokensIn, t.TokensOut, t.Cost)
	for _, m := range summary.ByModel {
		c.printf("  %-30s %d tokens  $%.4f\n", m.Model, m.Tokens, m.Cost)
	}
	return nil
}
