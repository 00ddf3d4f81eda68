package job

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobFunc 定义作业执行函数
type JobFunc func(ctx context.Context) error

// Scheduler 作业调度器，注册的作业各自按固定间隔独立运行
type Scheduler struct {
	jobs    []*scheduledJob
	running bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.Logger
}

type scheduledJob struct {
	name      string
	interval  time.Duration
	immediate bool // 启动后先跑一轮，不等第一个tick
	fn        JobFunc
}

// NewScheduler 创建调度器
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
	}
}

// RegisterJob 注册周期作业，必须在Start之前调用
func (s *Scheduler) RegisterJob(name string, interval time.Duration, immediate bool, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, &scheduledJob{
		name:      name,
		interval:  interval,
		immediate: immediate,
		fn:        fn,
	})

	s.logger.Info("Registered job", zap.String("job", name), zap.Duration("interval", interval))
}

// Start 启动调度器，重复调用无效果
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, job := range s.jobs {
		j := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runJob(runCtx, j)
		}()
	}
}

// Stop 停止调度器并等待在跑的作业退出，等待上限由ctx控制
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.logger.Warn("Stopping scheduler...")

	waitCh := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		s.logger.Info("All jobs stopped successfully")
	case <-ctx.Done():
		s.logger.Warn("Context deadline exceeded while waiting for jobs to stop")
	}
}

// runJob 运行单个作业的调度循环
func (s *Scheduler) runJob(ctx context.Context, job *scheduledJob) {
	s.logger.Info("Running job", zap.String("job", job.name), zap.Duration("interval", job.interval))

	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()

	if job.immediate {
		s.executeJob(ctx, job)
	}

	for {
		select {
		case <-ticker.C:
			s.executeJob(ctx, job)
		case <-ctx.Done():
			s.logger.Info("Context cancelled, stopping job", zap.String("job", job.name))
			return
		}
	}
}

// executeJob 执行作业并处理错误
// 单次执行限制在半个调度间隔内，跑不完就放弃，不挤占下一轮
func (s *Scheduler) executeJob(ctx context.Context, job *scheduledJob) {
	jobCtx, cancel := context.WithTimeout(ctx, job.interval/2)
	defer cancel()

	s.logger.Debug("Starting job execution", zap.String("job", job.name))
	startTime := time.Now()

	if err := job.fn(jobCtx); err != nil {
		s.logger.Error("Job execution failed",
			zap.String("job", job.name),
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)))
	} else {
		s.logger.Debug("Job execution completed",
			zap.String("job", job.name),
			zap.Duration("duration", time.Since(startTime)))
	}
}
