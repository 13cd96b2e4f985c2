package usecase

import (
	"sync"
	"time"

	"github.com/farmstock/stockmon/internal/domain"
)

const (
	// MaxPerWindow is the number of notifications a category may emit per window.
	MaxPerWindow = 2

	// CategoryWindow is the length of a category's notification window.
	CategoryWindow = 10 * time.Second

	// ItemCooldown is the minimum gap between two alerts for the same item.
	ItemCooldown = 24 * time.Hour
)

// windowState counts a category's sends over the trailing window. Reserved
// slots belong to alerts admitted but not yet sent.
type windowState struct {
	sent     []time.Time
	reserved int
}

func (w *windowState) prune(now time.Time, window time.Duration) {
	kept := w.sent[:0]
	for _, at := range w.sent {
		if now.Sub(at) < window {
			kept = append(kept, at)
		}
	}
	w.sent = kept
}

// RateLimiter enforces per-category windows and per-item cooldowns.
// State lives in memory only and resets when the process restarts.
type RateLimiter struct {
	mu       sync.Mutex
	clock    domain.Clock
	max      int
	window   time.Duration
	cooldown time.Duration
	windows  map[domain.Category]*windowState
	lastSent map[string]time.Time
}

// NewRateLimiter creates a limiter with the default limits.
func NewRateLimiter(clock domain.Clock) *RateLimiter {
	return NewRateLimiterWithLimits(clock, MaxPerWindow, CategoryWindow, ItemCooldown)
}

// NewRateLimiterWithLimits creates a limiter with custom limits (for testing).
func NewRateLimiterWithLimits(clock domain.Clock, max int, window, cooldown time.Duration) *RateLimiter {
	return &RateLimiter{
		clock:    clock,
		max:      max,
		window:   window,
		cooldown: cooldown,
		windows:  make(map[domain.Category]*windowState),
		lastSent: make(map[string]time.Time),
	}
}

func (r *RateLimiter) state(category domain.Category) *windowState {
	w, ok := r.windows[category]
	if !ok {
		w = &windowState{}
		r.windows[category] = w
	}
	w.prune(r.clock.Now(), r.window)
	return w
}

// Admit reserves a notification slot for the category. It fails once the
// sends within the trailing window plus the open reservations reach the
// limit. Every successful Admit must be followed by Sent or Release.
func (r *RateLimiter) Admit(category domain.Category) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.state(category)
	if len(w.sent)+w.reserved >= r.max {
		return false
	}
	w.reserved++
	return true
}

// Sent turns one of the category's reservations into a send at the
// current time.
func (r *RateLimiter) Sent(category domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.state(category)
	if w.reserved > 0 {
		w.reserved--
	}
	w.sent = append(w.sent, r.clock.Now())
}

// Release gives back n unused reservations.
func (r *RateLimiter) Release(category domain.Category, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.state(category)
	w.reserved = max(w.reserved-n, 0)
}

// AdmitItem reports whether item is outside its cooldown. The locally
// recorded send time is authoritative; the remote lastNotificationSent is
// consulted as well since another device may have alerted on it.
func (r *RateLimiter) AdmitItem(item domain.StockItem) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if sent, ok := r.lastSent[itemKey(item)]; ok && now.Sub(sent) < r.cooldown {
		return false
	}
	if item.LastNotificationSent != nil && now.Sub(*item.LastNotificationSent) < r.cooldown {
		return false
	}
	return true
}

// RecordSent marks item as alerted now and drops expired cooldown records.
func (r *RateLimiter) RecordSent(item domain.StockItem) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for key, sent := range r.lastSent {
		if now.Sub(sent) >= r.cooldown {
			delete(r.lastSent, key)
		}
	}
	r.lastSent[itemKey(item)] = now
}

// WindowCount returns the category's sends in the trailing window plus its
// open reservations.
func (r *RateLimiter) WindowCount(category domain.Category) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.state(category)
	return len(w.sent) + w.reserved
}

// IDs are only unique within a category's endpoint; nameless IDs fall back to the name.
func itemKey(item domain.StockItem) string {
	id := item.ID
	if id == "" {
		id = "name:" + item.Name
	}
	return string(item.Category) + "/" + id
}
