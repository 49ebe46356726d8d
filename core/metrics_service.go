package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	metricLoginSuccessKey = "auth_metrics:login_success"
	metricLoginFailureKey = "auth_metrics:login_failure"
	metricRegisteredKey   = "auth_metrics:registered"
)

// AuthOverview は認証まわりの累積カウンタを表す。
type AuthOverview struct {
	LoginSuccess int64 `json:"login_success"`
	LoginFailure int64 `json:"login_failure"`
	Registered   int64 `json:"registered"`
}

// AuthMetrics は Redis 上のログイン成功/失敗・登録数カウンタを扱う。
type AuthMetrics struct {
	redis RedisCmd
}

func NewAuthMetrics(redis RedisCmd) *AuthMetrics {
	return &AuthMetrics{redis: redis}
}

// IncrLoginSuccess records a successful login. Failures here are the
// caller's to log; metrics must not break the login path.
func (m *AuthMetrics) IncrLoginSuccess(ctx context.Context) error {
	return m.redis.Incr(ctx, metricLoginSuccessKey).Err()
}

func (m *AuthMetrics) IncrLoginFailure(ctx context.Context) error {
	return m.redis.Incr(ctx, metricLoginFailureKey).Err()
}

func (m *AuthMetrics) IncrRegistered(ctx context.Context) error {
	return m.redis.Incr(ctx, metricRegisteredKey).Err()
}

// Overview は全カウンタの現在値を返す。未設定のキーは 0 扱い。
func (m *AuthMetrics) Overview(ctx context.Context) (AuthOverview, error) {
	var out AuthOverview
	var err error
	if out.LoginSuccess, err = m.counter(ctx, metricLoginSuccessKey); err != nil {
		return AuthOverview{}, err
	}
	if out.LoginFailure, err = m.counter(ctx, metricLoginFailureKey); err != nil {
		return AuthOverview{}, err
	}
	if out.Registered, err = m.counter(ctx, metricRegisteredKey); err != nil {
		return AuthOverview{}, err
	}
	return out, nil
}

func (m *AuthMetrics) counter(ctx context.Context, key string) (int64, error) {
	val, err := m.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter %s: %w", key, err)
	}
	return n, nil
}
