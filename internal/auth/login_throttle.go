package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle counts failed login attempts per account and source address
// in Redis. A nil throttle (or an unconfigured client) degrades open: login
// proceeds without throttling.
type LoginThrottle struct {
	client      *redis.Client
	maxAttempts int
	lockout     time.Duration
}

// NewLoginThrottle builds the throttle.
func NewLoginThrottle(client *redis.Client, maxAttempts, lockoutMinutes int) *LoginThrottle {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if lockoutMinutes <= 0 {
		lockoutMinutes = 15
	}
	return &LoginThrottle{
		client:      client,
		maxAttempts: maxAttempts,
		lockout:     time.Duration(lockoutMinutes) * time.Minute,
	}
}

func throttleKey(email, sourceAddr string) string {
	return fmt.Sprintf("login_attempts:%s:%s", email, sourceAddr)
}

// Blocked reports whether the account+source pair has exhausted its attempts.
func (t *LoginThrottle) Blocked(ctx context.Context, email, sourceAddr string) bool {
	if t == nil || t.client == nil {
		return false
	}
	count, err := t.client.Get(ctx, throttleKey(email, sourceAddr)).Int()
	if err != nil {
		return false
	}
	return count >= t.maxAttempts
}

// RecordFailure increments the attempt counter, starting the lockout window
// on the first failure.
func (t *LoginThrottle) RecordFailure(ctx context.Context, email, sourceAddr string) {
	if t == nil || t.client == nil {
		return
	}
	key := throttleKey(email, sourceAddr)
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return
	}
	if count == 1 {
		t.client.Expire(ctx, key, t.lockout)
	}
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, email, sourceAddr string) {
	if t == nil || t.client == nil {
		return
	}
	t.client.Del(ctx, throttleKey(email, sourceAddr))
}
