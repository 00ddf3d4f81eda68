package scanner

import (
	"context"
	"time"

	"soltrack/internal/scanner/config"
	"soltrack/internal/scanner/consumer"
	"soltrack/internal/scanner/job"
	"soltrack/internal/scanner/monitor"
	"soltrack/internal/scanner/repository"
	"soltrack/internal/scanner/service"

	"go.uber.org/zap"
)

type Core struct {
	cfg       config.Config
	tl        *zap.Logger
	repo      repository.Repository
	analyzer  *service.Analyzer
	scheduler *job.Scheduler
	consumers []consumer.KafkaConsumer
	metrics   *monitor.MetricsServer
}

func New(cfg config.Config, logger *zap.Logger) *Core {
	// 初始化repo
	repo := repository.New(cfg, logger)

	// 初始化扫描分析器
	analyzer := service.NewAnalyzer(cfg, logger, repo)
	daos := analyzer.DAOs()

	// 初始化作业调度器
	scheduler := job.NewScheduler(logger)

	// 定时重扫已跟踪钱包，配置为0时不启用
	if cfg.Scanner.RescanIntervalHours > 0 {
		rescan := job.NewWalletRescan(cfg, logger, analyzer)
		scheduler.RegisterJob("wallet_rescan", time.Duration(cfg.Scanner.RescanIntervalHours)*time.Hour, false, rescan.Run)
	}

	// 注册定时清理任务 - 每小时执行一次
	tradeCleanup := job.NewTradeCleanup(cfg, logger, daos)
	scheduler.RegisterJob("trade_cleanup", 1*time.Hour, false, tradeCleanup.Run)

	// 补录目录里暂时查不到的代币信息
	missingToken := job.NewHandleMissingTokenInfo(cfg, logger, repo, daos)
	scheduler.RegisterJob("handle_missing_tokeninfo", 1*time.Minute, false, missingToken.Run)

	// 初始化消费者
	consumers := []consumer.KafkaConsumer{
		consumer.NewScanRequestConsumer(cfg, logger, analyzer),
	}

	core := &Core{
		cfg:       cfg,
		tl:        logger,
		repo:      repo,
		analyzer:  analyzer,
		scheduler: scheduler,
		consumers: consumers,
		metrics:   monitor.NewMetricsServer(cfg.Monitor),
	}
	return core
}

// Analyzer 暴露扫描分析器，嵌入式用法直接走它
func (c *Core) Analyzer() *service.Analyzer {
	return c.analyzer
}

func (c *Core) Start(ctx context.Context) {
	c.tl.Info("Starting scanner core...")
	// 启动监控服务
	if c.metrics != nil {
		c.metrics.Run()
	}

	// 启动消费者
	for _, cons := range c.consumers {
		go cons.Run(ctx)
	}

	// 启动调度器
	c.scheduler.Start(ctx)
	c.tl.Info("Scanner started successfully")

	// 等待外部关闭信号
	<-ctx.Done()
	c.tl.Info("Shutting down scanner due to context cancellation...")
}

// Stop 优雅关闭 Core 的所有资源
// 顺序：先停新请求来源，再排空异步写入器，最后断开外部连接
func (c *Core) Stop(ctx context.Context) {
	c.tl.Info("Stopping scanner core...")

	// 停止消费者
	for _, cons := range c.consumers {
		if err := cons.Stop(); err != nil {
			c.tl.Warn("Failed to stop consumer", zap.String("consumer", cons.ID()), zap.Error(err))
		}
	}

	// 停止调度器
	if c.scheduler != nil {
		c.scheduler.Stop(ctx)
	}

	// 排空成交写入管道
	if c.analyzer != nil {
		c.analyzer.Close()
	}

	// 停止 Prometheus 监控服务
	if c.metrics != nil {
		_ = c.metrics.Stop(ctx)
	}

	c.repo.Close()

	c.tl.Info("Scanner core stopped.")
}
