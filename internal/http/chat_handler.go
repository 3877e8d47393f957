package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"servechat/internal/domain"
	"servechat/internal/service"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsWriteWait  = 10 * time.Second
)

// ChatHandler mantiene dependencias para endpoints de sesiones y mensajes.
type ChatHandler struct {
	logger   *zap.Logger
	sessions *service.SessionService
	chat     *service.ChatService
	limiter  service.ChatRateLimiter
	upgrader websocket.Upgrader
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(
	logger *zap.Logger,
	sessions *service.SessionService,
	chat *service.ChatService,
	limiter service.ChatRateLimiter,
	cfg RouterConfig,
) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ChatHandler{
		logger:   logger,
		sessions: sessions,
		chat:     chat,
		limiter:  limiter,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

type messageRequest struct {
	Content string `json:"content" binding:"required"`
}

// turnResponse agrega los errores del turno como texto.
type turnResponse struct {
	service.ChatTurn
	ServingError string `json:"serving_error,omitempty"`
	PersistError string `json:"persist_error,omitempty"`
}

func newTurnResponse(turn service.ChatTurn) turnResponse {
	resp := turnResponse{ChatTurn: turn}
	if turn.ServingErr != nil {
		resp.ServingError = turn.ServingErr.Error()
	}
	if turn.PersistErr != nil {
		resp.PersistError = turn.PersistErr.Error()
	}
	return resp
}

type sessionResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	State     *service.ChatState `json:"state"`
}

// CreateSession maneja POST /session.
func (h *ChatHandler) CreateSession(c *gin.Context) {
	if h.chat == nil {
		writeError(c, h.logger, "create session", service.ErrChatNotConfigured)
		return
	}
	id := currentIdentity(c)
	session, state, err := h.sessions.Create(c.Request.Context(), id.UserID, h.chat.Catalog().Default())
	if err != nil {
		writeError(c, h.logger, "create session", err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{Token: session.Token, ExpiresAt: session.ExpiresAt, State: state})
}

// GetSession maneja GET /session.
func (h *ChatHandler) GetSession(c *gin.Context) {
	sessionID, _ := GetSessionID(c)
	state, err := h.sessions.Load(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, h.logger, "load session", err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// EndSession maneja DELETE /session: descarta el estado guardado de la sesion.
func (h *ChatHandler) EndSession(c *gin.Context) {
	sessionID, _ := GetSessionID(c)
	if err := h.sessions.End(c.Request.Context(), sessionID); err != nil {
		writeError(c, h.logger, "end session", err)
		return
	}
	h.logger.Info("chat session ended", zap.String("session_id", sessionID))
	c.Status(http.StatusNoContent)
}

// ResetSession maneja POST /session/reset: empieza una conversacion nueva.
func (h *ChatHandler) ResetSession(c *gin.Context) {
	h.update(c, "reset session", func(state *service.ChatState) error {
		state.Reset()
		return nil
	})
}

// SwitchEndpoint maneja PUT /session/endpoint.
func (h *ChatHandler) SwitchEndpoint(c *gin.Context) {
	var req struct {
		EndpointID string `json:"endpoint_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	h.update(c, "switch endpoint", func(state *service.ChatState) error {
		return h.chat.SwitchEndpoint(ctx, state, req.EndpointID)
	})
}

// Rename maneja PUT /session/title.
func (h *ChatHandler) Rename(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	h.update(c, "rename conversation", func(state *service.ChatState) error {
		return h.chat.Rename(ctx, state, req.Title)
	})
}

// LoadConversation maneja POST /session/load.
func (h *ChatHandler) LoadConversation(c *gin.Context) {
	var req struct {
		ConversationID string `json:"conversation_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	userID := currentIdentity(c).UserID
	h.update(c, "load conversation", func(state *service.ChatState) error {
		return h.chat.LoadConversation(ctx, state, userID, req.ConversationID)
	})
}

// ExportSession maneja GET /session/export.
func (h *ChatHandler) ExportSession(c *gin.Context) {
	sessionID, _ := GetSessionID(c)
	state, err := h.sessions.Load(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, h.logger, "export session", err)
		return
	}
	raw, err := h.chat.Export(c.Request.Context(), state, currentIdentity(c).UserID)
	if err != nil {
		writeError(c, h.logger, "export session", err)
		return
	}
	writeExport(c, state.ConversationID, raw)
}

// PostMessage maneja POST /chat/messages.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req messageRequest
	if !bindJSON(c, &req) {
		return
	}
	sessionID, _ := GetSessionID(c)
	turn, err := h.send(c.Request.Context(), sessionID, currentIdentity(c), req.Content)
	if err != nil {
		if errors.Is(err, errRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many messages, wait a moment"})
			return
		}
		writeError(c, h.logger, "send message", err)
		return
	}
	c.JSON(http.StatusOK, newTurnResponse(turn))
}

var errRateLimited = errors.New("rate limited")

// send aplica el rate limit y procesa un turno bajo el lock de la sesion.
func (h *ChatHandler) send(ctx context.Context, sessionID string, id domain.Identity, content string) (service.ChatTurn, error) {
	if h.chat == nil {
		return service.ChatTurn{}, service.ErrChatNotConfigured
	}
	if h.limiter != nil && !h.limiter.Allow(id.UserID) {
		return service.ChatTurn{}, errRateLimited
	}
	var turn service.ChatTurn
	_, err := h.sessions.Update(ctx, sessionID, func(state *service.ChatState) error {
		t, err := h.chat.Send(ctx, state, id, content)
		if err != nil {
			return err
		}
		turn = t
		return nil
	})
	return turn, err
}

func (h *ChatHandler) update(c *gin.Context, op string, fn func(*service.ChatState) error) {
	if h.chat == nil {
		writeError(c, h.logger, op, service.ErrChatNotConfigured)
		return
	}
	sessionID, _ := GetSessionID(c)
	state, err := h.sessions.Update(c.Request.Context(), sessionID, fn)
	if err != nil {
		writeError(c, h.logger, op, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type wsInbound struct {
	Content string `json:"content"`
}

type wsOutbound struct {
	Type  string        `json:"type"`
	Turn  *turnResponse `json:"turn,omitempty"`
	Error string        `json:"error,omitempty"`
}

// Stream maneja GET /chat/ws: cada mensaje de texto {content} es un turno.
func (h *ChatHandler) Stream(c *gin.Context) {
	sessionID, _ := GetSessionID(c)
	id := currentIdentity(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var writeMu sync.Mutex
	write := func(msg wsOutbound) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(msg)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
				writeMu.Unlock()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				if ce.Code != websocket.CloseNormalClosure && ce.Code != websocket.CloseGoingAway {
					h.logger.Warn("websocket closed", zap.Int("code", ce.Code), zap.String("text", ce.Text))
				}
				return
			}
			if isDecodeError(err) {
				if werr := write(wsOutbound{Type: "error", Error: "invalid message"}); werr != nil {
					return
				}
				continue
			}
			return
		}
		turn, err := h.send(ctx, sessionID, id, in.Content)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, errRateLimited) {
				msg = "too many messages, wait a moment"
			}
			if werr := write(wsOutbound{Type: "error", Error: msg}); werr != nil {
				return
			}
			continue
		}
		resp := newTurnResponse(turn)
		if err := write(wsOutbound{Type: "turn", Turn: &resp}); err != nil {
			h.logger.Warn("websocket write failed", zap.Error(err))
			return
		}
	}
}

// isDecodeError distingue un JSON mal formado de un error de conexion.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// originChecker acepta cualquier origen si no hay lista o contiene "*".
func originChecker(origins []string) func(r *http.Request) bool {
	if allowAnyOrigin(origins) {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

func writeExport(c *gin.Context, conversationID string, raw []byte) {
	c.Header("Content-Disposition", `attachment; filename="conversation_`+conversationID+`.json"`)
	c.Data(http.StatusOK, "application/json", raw)
}
