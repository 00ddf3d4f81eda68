package reliability

import (
	"sync"
	"time"

	"soltrack/internal/scanner/monitor"

	"go.uber.org/zap"
)

const (
	BREAKER_FAILURE_THRESHOLD = 5
	BREAKER_COOLDOWN          = 60 * time.Second
)

type BreakerState int32

const (
	BREAKER_CLOSED BreakerState = iota
	BREAKER_OPEN
	BREAKER_HALF_OPEN
)

func (s BreakerState) String() string {
	switch s {
	case BREAKER_OPEN:
		return "open"
	case BREAKER_HALF_OPEN:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker 按连续失败次数熔断上游调用
// closed -> open: 连续可重试失败达到阈值
// open -> half-open: 冷却期结束后放行一次试探
// half-open -> closed: 试探成功；试探失败则重新open
type CircuitBreaker struct {
	mu       sync.Mutex
	name     string
	state    BreakerState
	failures int
	openedAt time.Time
	inTrial  bool

	threshold int
	cooldown  time.Duration

	tl *zap.Logger
}

func NewCircuitBreaker(name string, threshold int, cooldown time.Duration, tl *zap.Logger) *CircuitBreaker {
	if threshold <= 0 {
		threshold = BREAKER_FAILURE_THRESHOLD
	}
	if cooldown <= 0 {
		cooldown = BREAKER_COOLDOWN
	}
	return &CircuitBreaker{
		name:      name,
		state:     BREAKER_CLOSED,
		threshold: threshold,
		cooldown:  cooldown,
		tl:        tl,
	}
}

// Allow 在发起调用前检查闸门
// 熔断打开且未到冷却期时返回 *ErrUnavailable，调用方不应发起网络请求
// 冷却期已过则进入half-open，本次调用作为试探放行
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BREAKER_CLOSED:
		return nil
	case BREAKER_OPEN:
		remaining := b.cooldown - time.Since(b.openedAt)
		if remaining > 0 {
			return &ErrUnavailable{Upstream: b.name, RetryAfter: remaining}
		}
		b.setState(BREAKER_HALF_OPEN)
		b.inTrial = true
		return nil
	default:
		// half-open期间只允许一个在途试探；上一个试探已有结果则放行新的
		if b.inTrial {
			return &ErrUnavailable{Upstream: b.name, RetryAfter: b.cooldown}
		}
		b.inTrial = true
		return nil
	}
}

// RecordSuccess 成功调用，关闭熔断并清零失败计数
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BREAKER_CLOSED {
		b.tl.Info("✅ 熔断器恢复闭合", zap.String("upstream", b.name))
	}
	b.failures = 0
	b.inTrial = false
	b.setState(BREAKER_CLOSED)
}

// ReleaseTrial 调用方放弃了本次调用且无法判断上游状态（如context取消）
// 只释放half-open的在途试探名额，不改变熔断状态
func (b *CircuitBreaker) ReleaseTrial() {
	b.mu.Lock()
	b.inTrial = false
	b.mu.Unlock()
}

// RecordFailure 记录一次可重试失败，half-open试探失败直接重新打开
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.inTrial = false
	if b.state == BREAKER_HALF_OPEN || b.failures >= b.threshold {
		if b.state != BREAKER_OPEN {
			b.tl.Warn("❌ 熔断器打开，暂停上游调用",
				zap.String("upstream", b.name),
				zap.Int("failures", b.failures),
				zap.Duration("cooldown", b.cooldown),
			)
			monitor.BreakerTrips.WithLabelValues(b.name).Inc()
		}
		b.openedAt = time.Now()
		b.setState(BREAKER_OPEN)
	}
}

func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// setState 调用方需持有锁
func (b *CircuitBreaker) setState(s BreakerState) {
	b.state = s
	monitor.BreakerState.WithLabelValues(b.name).Set(float64(s))
}
