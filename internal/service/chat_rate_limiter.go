package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// ChatRateLimiter limita los turnos de chat por usuario.
type ChatRateLimiter interface {
	Allow(key string) bool
}

type memoryLimiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type memoryChatRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*memoryLimiterEntry

	// Un limiter quieto mas de idleAfter ya recupero toda la rafaga;
	// borrarlo equivale a crearlo de nuevo.
	idleAfter time.Duration
	lastSweep time.Time
}

// NewMemoryChatRateLimiter permite perMinute turnos por minuto con rafaga del mismo tamano.
func NewMemoryChatRateLimiter(perMinute int) ChatRateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &memoryChatRateLimiter{
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     perMinute,
		limiters:  make(map[string]*memoryLimiterEntry),
		idleAfter: 3 * time.Minute,
		lastSweep: time.Now(),
	}
}

func (l *memoryChatRateLimiter) Allow(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	now := time.Now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.idleAfter {
		l.sweepLocked(now)
	}
	entry, ok := l.limiters[key]
	if !ok {
		entry = &memoryLimiterEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()
	return entry.lim.AllowN(now, 1)
}

func (l *memoryChatRateLimiter) sweepLocked(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= l.idleAfter {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

const redisChatAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisChatRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

// NewRedisChatRateLimiter usa una ventana fija compartida entre instancias.
func NewRedisChatRateLimiter(client *redis.Client, window time.Duration, max int) ChatRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisChatRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "chat:rl:",
	}
}

func (l *redisChatRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	redisKey := l.prefix + normalizedKey
	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, redisChatAllowScript, []string{redisKey}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}
