package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func waitForCount(t *testing.T, counter *atomic.Int64, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if counter.Load() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("counter = %d, want >= %d", counter.Load(), want)
}

func TestSchedulerRunsImmediateJob(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var runs atomic.Int64
	s.RegisterJob("counter", 50*time.Millisecond, true, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start(context.Background())
	// immediate跑一轮，之后至少再tick一轮
	waitForCount(t, &runs, 2)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)

	after := runs.Load()
	time.Sleep(120 * time.Millisecond)
	if got := runs.Load(); got != after {
		t.Errorf("job still running after Stop: %d -> %d", after, got)
	}
}

func TestSchedulerNonImmediateWaitsForTick(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var runs atomic.Int64
	s.RegisterJob("slow", time.Hour, false, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)

	if got := runs.Load(); got != 0 {
		t.Errorf("non-immediate job ran %d times before first tick", got)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)
}

func TestSchedulerCancelsLongRunningJob(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	// 间隔100ms，单次执行应在50ms左右被掐掉
	canceled := make(chan struct{}, 1)
	s.RegisterJob("blocker", 100*time.Millisecond, true, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			select {
			case canceled <- struct{}{}:
			default:
			}
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})

	s.Start(context.Background())

	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("job context was never canceled")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(stopCtx) // 未启动时Stop应直接返回
}

func TestSchedulerStartTwice(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var runs atomic.Int64
	s.RegisterJob("once", time.Hour, true, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start(context.Background())
	s.Start(context.Background())
	waitForCount(t, &runs, 1)

	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("immediate job ran %d times, want 1", got)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)
}
