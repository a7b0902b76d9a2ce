// Package ratelimit limits how often tokens are issued per username and per
// client IP.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const window = time.Hour

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	MaxPerUserPerHour int
	MaxPerIPPerHour   int

	// Clock for testing (nil uses real time)
	Clock Clock
}

func DefaultConfig() *Config {
	return &Config{
		MaxPerUserPerHour: 20,
		MaxPerIPPerHour:   60,
	}
}

type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

// TokenLimiter is implemented by the in-memory Limiter and by RedisLimiter.
// Callers Check before issuing and Record after. Limiter consumes quota on
// Record. RedisLimiter consumes it atomically on an allowed Check, since
// instances share the counters, and ignores Record.
type TokenLimiter interface {
	CheckTokenIssue(ctx context.Context, username, ip string) LimitResult
	RecordTokenIssue(ctx context.Context, username, ip string)
	Close()
}

type entry struct {
	count   int
	firstAt time.Time
	lastAt  time.Time
}

// Limiter keeps fixed one-hour windows in process memory.
type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.RWMutex
	byUser map[string]*entry
	byIP   map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		byUser:        make(map[string]*entry),
		byIP:          make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine and releases resources.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

func (l *Limiter) CheckTokenIssue(_ context.Context, username, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	userKey := hashKey("token:user:", normalizeIdentifier(username))
	ipKey := hashKey("token:ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if result := checkWindow(l.byUser[userKey], now, l.config.MaxPerUserPerHour, "user_hourly_limit"); !result.Allowed {
		return result
	}
	return checkWindow(l.byIP[ipKey], now, l.config.MaxPerIPPerHour, "ip_hourly_limit")
}

func (l *Limiter) RecordTokenIssue(_ context.Context, username, ip string) {
	now := l.clock.Now()
	userKey := hashKey("token:user:", normalizeIdentifier(username))
	ipKey := hashKey("token:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	record(l.byUser, userKey, now)
	record(l.byIP, ipKey, now)
}

func checkWindow(e *entry, now time.Time, limit int, reason string) LimitResult {
	if e == nil || limit <= 0 {
		return LimitResult{Allowed: true}
	}
	elapsed := now.Sub(e.firstAt)
	if elapsed < window && e.count >= limit {
		return LimitResult{
			Allowed:    false,
			RetryAfter: window - elapsed,
			Reason:     reason,
		}
	}
	return LimitResult{Allowed: true}
}

func record(entries map[string]*entry, key string, now time.Time) {
	e := entries[key]
	if e == nil || now.Sub(e.firstAt) >= window {
		entries[key] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

func hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

// normalizeIdentifier lowercases the identifier to prevent case-based bypass.
func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entries := range []map[string]*entry{l.byUser, l.byIP} {
		for k, e := range entries {
			if now.Sub(e.lastAt) > window {
				delete(entries, k)
			}
		}
	}
}

// SanitizeIdentifier masks a username for logging.
func SanitizeIdentifier(identifier string) string {
	identifier = normalizeIdentifier(identifier)
	if len(identifier) > 2 {
		return identifier[:2] + "***"
	}
	return "***"
}

// LogRateLimitExceeded logs a rate limit event with sanitized identifier.
func LogRateLimitExceeded(ctx context.Context, identifier, ip, reason string) {
	log.Ctx(ctx).Warn().
		Str("event", "rate_limit_exceeded").
		Str("identifier", SanitizeIdentifier(identifier)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Token rate limit exceeded")
}
