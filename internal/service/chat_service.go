package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"servechat/internal/domain"
	"servechat/internal/llm"
)

const (
	endpointTestPrompt    = "Reply with OK"
	endpointTestMaxTokens = 4
	endpointTestMaxRunes  = 40
)

// ChatOptions agrupa los parametros de cada llamada al modelo.
type ChatOptions struct {
	MaxTurns int
	Query    llm.QueryOptions
}

// ChatService orquesta un turno: ventana de contexto, llamada al modelo,
// persistencia best-effort y titulo automatico.
type ChatService struct {
	logger        *zap.Logger
	client        llm.ServingClient
	lister        llm.EndpointLister
	conversations *ConversationService
	titles        *TitleGenerator
	catalog       EndpointCatalog
	opts          ChatOptions
}

func NewChatService(
	logger *zap.Logger,
	client llm.ServingClient,
	lister llm.EndpointLister,
	conversations *ConversationService,
	titles *TitleGenerator,
	catalog EndpointCatalog,
	opts ChatOptions,
) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if conversations == nil {
		conversations = NewConversationService(logger, nil, nil, nil, Pricing{})
	}
	if titles == nil {
		titles = NewTitleGenerator(client, logger)
	}
	return &ChatService{
		logger:        logger,
		client:        client,
		lister:        lister,
		conversations: conversations,
		titles:        titles,
		catalog:       catalog,
		opts:          opts,
	}
}

// ChatTurn es el resultado de Send. ServingErr y PersistErr describen
// fallas degradadas: el turno igual queda en el estado.
type ChatTurn struct {
	ConversationID string             `json:"conversation_id"`
	Reply          domain.ChatMessage `json:"reply"`
	Status         string             `json:"status"`
	Usage          domain.Usage       `json:"usage"`
	Cost           float64            `json:"cost"`
	Title          string             `json:"title"`
	TitleChanged   bool               `json:"title_changed"`
	ServingErr     error              `json:"-"`
	PersistErr     error              `json:"-"`
}

func (s *ChatService) Catalog() EndpointCatalog {
	if s == nil {
		return EndpointCatalog{Endpoints: []domain.Endpoint{}, DefaultIndex: -1}
	}
	return s.catalog
}

func (s *ChatService) PersistenceEnabled() bool {
	return s != nil && s.conversations.Enabled()
}

// Send agrega el prompt al estado, consulta el modelo y registra el intercambio.
// Solo devuelve error para entradas invalidas o servicio sin configurar.
func (s *ChatService) Send(ctx context.Context, state *ChatState, id domain.Identity, prompt string) (ChatTurn, error) {
	if s == nil || s.client == nil {
		return ChatTurn{}, ErrChatNotConfigured
	}
	if state == nil {
		return ChatTurn{}, ErrInvalidInput
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ChatTurn{}, ErrInvalidInput
	}

	state.AddMessage(domain.RoleUser, prompt)
	window := BuildContextWindow(state.Messages, s.opts.MaxTurns)

	turn := ChatTurn{
		ConversationID: state.ConversationID,
		Status:         domain.MessageStatusOK,
	}
	reply, err := s.client.Query(ctx, state.Endpoint, window, s.opts.Query)
	if err != nil {
		s.logger.Warn("serving error",
			zap.String("endpoint", state.Endpoint),
			zap.String("conversation_id", state.ConversationID),
			zap.Error(err),
		)
		turn.ServingErr = err
		turn.Status = domain.MessageStatusError
		turn.Reply = domain.ChatMessage{Role: domain.RoleAssistant, Content: "(serving error: " + err.Error() + ")"}
	} else {
		turn.Reply = domain.ChatMessage{Role: domain.RoleAssistant, Content: reply.Content}
		turn.Usage = reply.Usage
		turn.Cost = s.conversations.Cost(reply.Usage.PromptTokens, reply.Usage.CompletionTokens)
	}
	state.AddMessage(turn.Reply.Role, turn.Reply.Content)

	if s.conversations.Enabled() {
		_, err := s.conversations.LogExchange(ctx, Exchange{
			ConversationID: state.ConversationID,
			Title:          state.Title,
			Identity:       id,
			Endpoint:       state.Endpoint,
			Prompt:         prompt,
			Reply:          turn.Reply.Content,
			Status:         turn.Status,
			Usage:          turn.Usage,
		})
		if err != nil {
			s.logger.Warn("persist exchange failed",
				zap.String("conversation_id", state.ConversationID),
				zap.Error(err),
			)
			turn.PersistErr = err
		} else {
			state.Persisted = true
		}
	}

	if turn.ServingErr == nil && state.IsNewConversation() {
		fallback := DefaultTitleFromPrompt(state.FirstUserPrompt())
		state.Title = s.titles.Generate(ctx, state.Endpoint, state.Messages, fallback)
		turn.TitleChanged = true
		if state.Persisted {
			if err := s.conversations.Rename(ctx, state.ConversationID, state.Title); err != nil {
				s.logger.Warn("persist auto title failed", zap.String("conversation_id", state.ConversationID), zap.Error(err))
			}
		}
	}
	turn.Title = state.Title
	return turn, nil
}

// EndpointTestResult es la respuesta corta de una prueba de endpoint.
type EndpointTestResult struct {
	Endpoint string `json:"endpoint"`
	OK       bool   `json:"ok"`
	Message  string `json:"message"`
}

// TestEndpoint pide "Reply with OK" con 4 tokens y recorta la respuesta a 40 caracteres.
func (s *ChatService) TestEndpoint(ctx context.Context, endpoint string) EndpointTestResult {
	endpoint = strings.TrimSpace(endpoint)
	result := EndpointTestResult{Endpoint: endpoint}
	if endpoint == "" {
		result.Message = "No endpoint specified"
		return result
	}
	if s == nil || s.client == nil {
		result.Message = ErrChatNotConfigured.Error()
		return result
	}
	reply, err := s.client.Query(ctx, endpoint,
		[]domain.ChatMessage{{Role: domain.RoleUser, Content: endpointTestPrompt}},
		llm.QueryOptions{MaxTokens: endpointTestMaxTokens, Temperature: s.opts.Query.Temperature},
	)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	msg := reply.Content
	if msg == "" {
		msg = "OK"
	}
	result.OK = true
	result.Message = truncateRunes(msg, endpointTestMaxRunes)
	return result
}

// ReadyEndpoints lista los endpoints READY del workspace de serving.
func (s *ChatService) ReadyEndpoints(ctx context.Context) ([]string, error) {
	if s == nil || s.lister == nil {
		return nil, llm.ErrEndpointNotConfigured
	}
	names, err := s.lister.ListReadyEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// SwitchEndpoint cambia el modelo de la sesion; si la conversacion ya existe
// tambien actualiza su modelo guardado.
func (s *ChatService) SwitchEndpoint(ctx context.Context, state *ChatState, endpointID string) error {
	endpointID = strings.TrimSpace(endpointID)
	if state == nil || !s.catalog.Contains(endpointID) {
		return ErrInvalidInput
	}
	state.Endpoint = endpointID
	if state.Persisted {
		if err := s.conversations.SwitchModel(ctx, state.ConversationID, endpointID); err != nil {
			s.logger.Warn("persist model switch failed", zap.String("conversation_id", state.ConversationID), zap.Error(err))
		}
	}
	return nil
}

// Rename cambia el titulo de la conversacion activa.
func (s *ChatService) Rename(ctx context.Context, state *ChatState, title string) error {
	if state == nil {
		return ErrInvalidInput
	}
	title, err := NormalizeTitle(title)
	if err != nil {
		return err
	}
	state.Title = title
	if state.Persisted {
		if err := s.conversations.Rename(ctx, state.ConversationID, title); err != nil {
			s.logger.Warn("persist title failed", zap.String("conversation_id", state.ConversationID), zap.Error(err))
		}
	}
	return nil
}

// LoadConversation reemplaza la conversacion activa por una del historial del usuario.
func (s *ChatService) LoadConversation(ctx context.Context, state *ChatState, userID, conversationID string) error {
	if state == nil {
		return ErrInvalidInput
	}
	conv, err := s.conversations.Meta(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	msgs, err := s.conversations.LoadMessages(ctx, userID, conv.ID)
	if err != nil {
		return err
	}
	state.Load(conv, msgs)
	return nil
}

// Export devuelve el JSON de la conversacion activa, desde el warehouse si ya se guardo.
func (s *ChatService) Export(ctx context.Context, state *ChatState, userID string) ([]byte, error) {
	if state == nil {
		return nil, ErrInvalidInput
	}
	if state.Persisted && s.conversations.Enabled() {
		raw, err := s.conversations.Export(ctx, userID, state.ConversationID)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, ErrPersistenceUnavailable) && !errors.Is(err, ErrConversationNotFound) {
			return nil, err
		}
		s.logger.Warn("export from warehouse failed, using session state", zap.Error(err))
	}
	return ExportState(state)
}
