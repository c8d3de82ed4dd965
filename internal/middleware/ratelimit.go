package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 5 * time.Minute

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter ограничивает частоту запросов одного клиента (token bucket на участника,
// для анонимных запросов на адрес соединения).
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
}

// NewRateLimiter создаёт ограничитель с заданной частотой и размером всплеска.
// Неположительная частота отключает ограничение.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// Allow сообщает, можно ли пропустить очередной запрос клиента.
func (l *RateLimiter) Allow(client string) bool {
	if l.rps <= 0 {
		return true
	}

	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[client]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[client] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// Prune удаляет корзины клиентов, не обращавшихся дольше limiterIdleTTL.
func (l *RateLimiter) Prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > limiterIdleTTL {
			delete(l.buckets, k)
		}
	}
}

// Middleware отвечает 429, если клиент превысил лимит.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.maybePrune()
		if !l.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) maybePrune() {
	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	if n > 1024 {
		l.Prune(time.Now())
	}
}

// clientKey выбирает корзину: идентификатор участника из контекста, иначе
// адрес соединения. X-Forwarded-For не учитывается.
func clientKey(r *http.Request) string {
	if c, ok := CallerFromContext(r.Context()); ok && c.ID != "" {
		return "caller:" + c.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}
