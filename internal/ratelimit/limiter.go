// Package ratelimit spaces out outbound requests per host so collectors
// stay polite to the publishers they poll.
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between requests to the same host
type Limiter struct {
	mu          sync.Mutex
	hosts       map[string]time.Time
	minInterval time.Duration
}

func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		hosts:       make(map[string]time.Time),
		minInterval: minInterval,
	}
}

// hostKey accepts either a bare host or a full URL
func hostKey(target string) string {
	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil && u.Host != "" {
			return strings.ToLower(u.Host)
		}
	}
	return strings.ToLower(target)
}

// Allow reports whether a request may go out now, recording it if so.
// A refused request does not move the window.
func (l *Limiter) Allow(host string) bool {
	key := hostKey(host)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.hosts[key]; ok && now.Sub(last) < l.minInterval {
		return false
	}
	l.hosts[key] = now
	return true
}

// Wait blocks until a request to host is allowed
func (l *Limiter) Wait(host string) {
	_ = l.WaitContext(context.Background(), host)
}

// WaitContext reserves the next slot for host and sleeps until it opens.
// Concurrent callers get consecutive slots.
func (l *Limiter) WaitContext(ctx context.Context, host string) error {
	key := hostKey(host)

	l.mu.Lock()
	now := time.Now()
	slot := now
	if last, ok := l.hosts[key]; ok {
		if next := last.Add(l.minInterval); next.After(now) {
			slot = next
		}
	}
	l.hosts[key] = slot
	l.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) Reset(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hosts, hostKey(host))
}

func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hosts = make(map[string]time.Time)
}
