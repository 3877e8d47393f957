package service

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"servechat/internal/domain"
)

// SessionService crea sesiones de chat, emite su token y guarda el ChatState.
type SessionService struct {
	logger *zap.Logger
	store  StateStore
	tokens *SessionTokenService
	locks  *keyedMutex
}

func NewSessionService(logger *zap.Logger, store StateStore, tokens *SessionTokenService) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryStateStore()
	}
	return &SessionService{
		logger: logger,
		store:  store,
		tokens: tokens,
		locks:  newKeyedMutex(),
	}
}

// Create abre una sesion nueva para el usuario con el endpoint indicado.
func (s *SessionService) Create(ctx context.Context, userID, endpoint string) (domain.Session, *ChatState, error) {
	if s == nil || s.tokens == nil {
		return domain.Session{}, nil, ErrChatNotConfigured
	}
	if strings.TrimSpace(userID) == "" {
		return domain.Session{}, nil, ErrInvalidInput
	}
	state := NewChatState(userID, endpoint)
	token, expiresAt, err := s.tokens.Issue(state.SessionID, userID)
	if err != nil {
		return domain.Session{}, nil, err
	}
	if err := s.store.Save(ctx, state, s.tokens.TTL()); err != nil {
		return domain.Session{}, nil, err
	}
	session := domain.Session{
		ID:        state.SessionID,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: state.CreatedAt,
	}
	s.logger.Info("chat session created", zap.String("session_id", session.ID), zap.String("user_id", userID))
	return session, state, nil
}

// Authenticate valida el token contra el usuario del request y devuelve el id de sesion.
func (s *SessionService) Authenticate(token, userID string) (string, error) {
	if s == nil || s.tokens == nil {
		return "", ErrChatNotConfigured
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	if claims.UserID != userID {
		return "", ErrSessionTokenInvalid
	}
	return claims.SessionID, nil
}

func (s *SessionService) Load(ctx context.Context, sessionID string) (*ChatState, error) {
	return s.store.Load(ctx, sessionID)
}

func (s *SessionService) Save(ctx context.Context, state *ChatState) error {
	return s.store.Save(ctx, state, s.tokens.TTL())
}

func (s *SessionService) End(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}

// Lock serializa los turnos de una misma sesion dentro del proceso.
func (s *SessionService) Lock(sessionID string) func() {
	return s.locks.Lock(sessionID)
}

// Update carga el estado bajo lock, aplica fn y lo guarda si fn no falla.
func (s *SessionService) Update(ctx context.Context, sessionID string, fn func(*ChatState) error) (*ChatState, error) {
	unlock := s.Lock(sessionID)
	defer unlock()

	state, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(state); err != nil {
		return state, err
	}
	if err := s.Save(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
