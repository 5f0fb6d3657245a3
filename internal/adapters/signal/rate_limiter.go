package signal

import (
	"sync"
	"time"

	"github.com/codesketch/hub/internal/config"
)

type bucketKey struct {
	client string
	op     Op
}

type bucket struct {
	count       int
	windowStart time.Time
}

// OpLimiter throttles per (client identifier, operation kind) with
// independent fixed-window budgets. Client identifiers can be
// attacker-influenced, so stale buckets are swept periodically to keep
// the map bounded.
type OpLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	quotas  map[Op]int
	buckets map[bucketKey]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

func NewOpLimiter(window time.Duration, rates config.Rates) *OpLimiter {
	l := &OpLimiter{
		window: window,
		quotas: map[Op]int{
			OpJoin:           rates.Join,
			OpCodeChange:     rates.CodeChange,
			OpLanguageChange: rates.LanguageChange,
			OpInputChange:    rates.InputChange,
			OpExecuteCode:    rates.ExecuteCode,
		},
		buckets: make(map[bucketKey]*bucket),
		stop:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Consume takes one point from the client's budget for op. Returns
// ErrRateLimited once the window's budget is spent; operations without
// a configured budget are never throttled.
func (l *OpLimiter) Consume(client string, op Op) error {
	quota, ok := l.quotas[op]
	if !ok {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	key := bucketKey{client: client, op: op}
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) >= l.window {
		b = &bucket{windowStart: now}
		l.buckets[key] = b
	}
	if b.count >= quota {
		return ErrRateLimited
	}
	b.count++
	return nil
}

// Stop ends the background sweep. Idempotent.
func (l *OpLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *OpLimiter) sweepLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *OpLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) >= l.window {
			delete(l.buckets, key)
		}
	}
}
