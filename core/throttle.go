package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const loginFailKeyPrefix = "login_fail:"

// LoginThrottle counts failed login attempts per username+client in Redis.
// Counters expire with the window, so a quiet client is forgiven without
// any cleanup job.
type LoginThrottle struct {
	redis RedisCmd
	cfg   Config
}

func NewLoginThrottle(redis RedisCmd, cfg Config) *LoginThrottle {
	return &LoginThrottle{redis: redis, cfg: cfg}
}

func loginFailKey(username, clientIP string) string {
	return loginFailKeyPrefix + username + ":" + clientIP
}

// TooMany reports whether this username+client pair has exhausted its
// failed attempts for the current window.
func (t *LoginThrottle) TooMany(ctx context.Context, username, clientIP string) (bool, error) {
	val, err := t.redis.Get(ctx, loginFailKey(username, clientIP)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		// The caller fails open and logs; a corrupt counter must not lock anyone out.
		return false, fmt.Errorf("corrupt counter %s: %w", loginFailKey(username, clientIP), err)
	}
	return n >= t.cfg.LoginMaxAttempts, nil
}

// RecordFailure increments the counter, starting the window on first failure.
func (t *LoginThrottle) RecordFailure(ctx context.Context, username, clientIP string) error {
	key := loginFailKey(username, clientIP)
	n, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return t.redis.Expire(ctx, key, t.cfg.LoginAttemptWindow).Err()
	}
	return nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, username, clientIP string) error {
	return t.redis.Del(ctx, loginFailKey(username, clientIP)).Err()
}
