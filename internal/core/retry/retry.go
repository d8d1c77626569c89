// Package retry 有上限的重試控制，等待時間從初始延遲開始每次加倍
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy 重試策略
type Policy struct {
	MaxRetries   int           // 第一次之外最多再試幾次
	InitialDelay time.Duration // 第一次重試前的等待，之後每次加倍
}

// Notify 每次失敗後、等待前呼叫
type Notify func(err error, attempt int, wait time.Duration)

// Permanent 包裝不應重試的錯誤，Do 會直接回傳原始錯誤
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do 執行 op，失敗時依策略重試，最後一次的錯誤原樣回傳
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	return DoNotify(ctx, policy, op, nil)
}

// DoNotify 同 Do，另外在每次重試前通知
func DoNotify(ctx context.Context, policy Policy, op func(ctx context.Context) error, notify Notify) error {
	attempt := 0
	operation := func() error {
		attempt++
		return op(ctx)
	}

	var n backoff.Notify
	if notify != nil {
		n = func(err error, wait time.Duration) {
			notify(err, attempt, wait)
		}
	}

	return backoff.RetryNotify(operation, newBackOff(ctx, policy), n)
}

// DoValue 有回傳值的版本
func DoValue[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// WithRetry 以 maxAttempts 次額外重試與初始延遲執行 op
func WithRetry(ctx context.Context, op func(ctx context.Context) error, maxAttempts int, initialDelay time.Duration) error {
	return Do(ctx, Policy{MaxRetries: maxAttempts, InitialDelay: initialDelay}, op)
}

// newBackOff 不加抖動的指數退避
func newBackOff(ctx context.Context, policy Policy) backoff.BackOff {
	retries := policy.MaxRetries
	if retries < 0 {
		retries = 0
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = maxInterval(policy.InitialDelay, retries)
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// maxInterval 最後一次重試的等待時間，避免被預設上限截斷
func maxInterval(initial time.Duration, retries int) time.Duration {
	if initial <= 0 {
		return 0
	}
	max := initial
	for i := 1; i < retries; i++ {
		if max > time.Hour {
			break
		}
		max *= 2
	}
	return max
}
