package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound se devuelve cuando la sesion no existe o expiro.
var ErrSessionNotFound = errors.New("session not found")

// StateStore persiste el ChatState de cada sesion con TTL.
type StateStore interface {
	Save(ctx context.Context, state *ChatState, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (*ChatState, error)
	Delete(ctx context.Context, sessionID string) error
}

type memoryStateEntry struct {
	state     *ChatState
	expiresAt time.Time
}

// memoryStateSweepEvery acota cada cuanto Save recorre el mapa buscando vencidas.
const memoryStateSweepEvery = time.Minute

type memoryStateStore struct {
	mu         sync.Mutex
	items      map[string]memoryStateEntry
	sweepEvery time.Duration
	lastSweep  time.Time
}

func NewMemoryStateStore() StateStore {
	return &memoryStateStore{
		items:      make(map[string]memoryStateEntry),
		sweepEvery: memoryStateSweepEvery,
		lastSweep:  time.Now().UTC(),
	}
}

func (s *memoryStateStore) Save(_ context.Context, state *ChatState, ttl time.Duration) error {
	if state == nil || strings.TrimSpace(state.SessionID) == "" {
		return nil
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) >= s.sweepEvery {
		s.sweepLocked(now)
	}
	s.items[state.SessionID] = memoryStateEntry{
		state:     state.Clone(),
		expiresAt: now.Add(ttl),
	}
	return nil
}

// sweepLocked borra las sesiones vencidas que nadie volvio a cargar.
func (s *memoryStateStore) sweepLocked(now time.Time) {
	for id, entry := range s.items {
		if now.After(entry.expiresAt) {
			delete(s.items, id)
		}
	}
	s.lastSweep = now
}

func (s *memoryStateStore) Load(_ context.Context, sessionID string) (*ChatState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if time.Now().UTC().After(entry.expiresAt) {
		delete(s.items, sessionID)
		return nil, ErrSessionNotFound
	}
	return entry.state.Clone(), nil
}

func (s *memoryStateStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID)
	return nil
}

type redisKVClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisStateStore struct {
	client redisKVClient
	prefix string
}

func NewRedisStateStore(client *redis.Client) StateStore {
	if client == nil {
		return nil
	}
	return &redisStateStore{
		client: client,
		prefix: "chat:session:",
	}
}

func (s *redisStateStore) Save(ctx context.Context, state *ChatState, ttl time.Duration) error {
	if state == nil || strings.TrimSpace(state.SessionID) == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+state.SessionID, raw, ttl).Err()
}

func (s *redisStateStore) Load(ctx context.Context, sessionID string) (*ChatState, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := s.client.Get(ctx, s.prefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var state ChatState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *redisStateStore) Delete(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+sessionID).Err()
}
