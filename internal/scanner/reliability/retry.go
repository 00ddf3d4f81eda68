package reliability

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"soltrack/internal/scanner/monitor"

	"go.uber.org/zap"
)

const (
	RETRY_MAX_ATTEMPTS       = 4
	RETRY_BASE_DELAY         = 1 * time.Second
	RETRY_TIMEOUT_BASE_DELAY = 3 * time.Second
	RETRY_MAX_DELAY          = 30 * time.Second
)

// Executor 统一的上游调用执行器：分类重试、指数退避加抖动、熔断计数
// 所有对外部服务的调用都应经过这里，客户端本身不做重试
type Executor struct {
	breaker *CircuitBreaker
	tl      *zap.Logger

	maxAttempts      int
	baseDelay        time.Duration
	timeoutBaseDelay time.Duration
	maxDelay         time.Duration

	onExhausted func(op string)
}

func NewExecutor(breaker *CircuitBreaker, tl *zap.Logger) *Executor {
	return &Executor{
		breaker:          breaker,
		tl:               tl,
		maxAttempts:      RETRY_MAX_ATTEMPTS,
		baseDelay:        RETRY_BASE_DELAY,
		timeoutBaseDelay: RETRY_TIMEOUT_BASE_DELAY,
		maxDelay:         RETRY_MAX_DELAY,
	}
}

// SetOnExhausted 注册重试耗尽回调，用于轮换RPC节点之类的善后动作
func (e *Executor) SetOnExhausted(fn func(op string)) {
	e.onExhausted = fn
}

// Execute 执行op并按错误类别处理
// 不可重试错误立即返回且不计入熔断，上游的明确拒绝按一次成功接触闭合熔断；
// 可重试错误退避后重试，每次失败计入熔断
// 熔断打开时直接返回 *ErrUnavailable，不发起网络调用
func (e *Executor) Execute(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := e.breaker.Allow(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		err := fn(ctx)
		if err == nil {
			e.breaker.RecordSuccess()
			return nil
		}

		if !IsRetryable(err) {
			// 上游给出明确响应说明链路存活，连续失败计数中断、熔断闭合；
			// context取消拿不到上游状态，只释放half-open的试探名额
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				e.breaker.ReleaseTrial()
			} else {
				e.breaker.RecordSuccess()
			}
			return err
		}

		lastErr = err
		e.breaker.RecordFailure()
		if attempt == e.maxAttempts {
			break
		}

		delay := e.backoff(attempt, IsTimeout(err))
		monitor.UpstreamRetries.WithLabelValues(op).Inc()
		e.tl.Warn("⌛ 上游调用失败，等待重试",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if e.onExhausted != nil {
		e.onExhausted(op)
	}
	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, e.maxAttempts, lastErr)
}

// backoff 第attempt次失败后的等待时长，落在[上限/2, 上限]区间
// 超时类错误基数3s，其余1s，整体不超过30s
func (e *Executor) backoff(attempt int, timeoutClass bool) time.Duration {
	base := e.baseDelay
	if timeoutClass {
		base = e.timeoutBaseDelay
	}

	d := base << (attempt - 1)
	if d > e.maxDelay || d <= 0 {
		d = e.maxDelay
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
