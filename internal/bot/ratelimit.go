package bot

import (
	"sync"
	"time"
)

// RateLimiter простой rate limiter для чатов
type RateLimiter struct {
	requests map[int64][]time.Time
	limit    int
	window   time.Duration
	mutex    sync.Mutex
	now      func() time.Time
}

// NewRateLimiter создает новый rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[int64][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// IsAllowed проверяет, разрешен ли запрос для чата
func (rl *RateLimiter) IsAllowed(chatID int64) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()

	// Удаляем старые запросы
	var validRequests []time.Time
	for _, reqTime := range rl.requests[chatID] {
		if now.Sub(reqTime) < rl.window {
			validRequests = append(validRequests, reqTime)
		}
	}

	if len(validRequests) >= rl.limit {
		rl.requests[chatID] = validRequests
		return false
	}

	rl.requests[chatID] = append(validRequests, now)
	return true
}
