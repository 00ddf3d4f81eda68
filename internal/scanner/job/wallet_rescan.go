package job

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"soltrack/internal/scanner/config"
	"soltrack/internal/scanner/service"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// 同时在扫的钱包数上限，钱包之间并发、单个钱包内部保持串行
const RESCAN_MAX_CONCURRENCY = 4

// WalletRescan 定时重扫被跟踪的钱包，保持其分析结果新鲜
type WalletRescan struct {
	cfg      config.Config
	tl       *zap.Logger
	analyzer *service.Analyzer
}

// NewWalletRescan 创建钱包重扫任务
func NewWalletRescan(cfg config.Config, logger *zap.Logger, analyzer *service.Analyzer) *WalletRescan {
	return &WalletRescan{
		cfg:      cfg,
		tl:       logger,
		analyzer: analyzer,
	}
}

// Run 执行一轮重扫
func (j *WalletRescan) Run(ctx context.Context) error {
	wallets, err := j.analyzer.DAOs().WalletScanDAO.ListTracked(ctx)
	if err != nil {
		return fmt.Errorf("list tracked wallets: %w", err)
	}
	if len(wallets) == 0 {
		j.tl.Debug("No tracked wallets to rescan")
		return nil
	}

	j.tl.Info("Starting tracked wallet rescan", zap.Int("wallets", len(wallets)))
	startTime := time.Now()

	var failed atomic.Int64
	worker := pool.New().WithMaxGoroutines(RESCAN_MAX_CONCURRENCY)
	for _, wallet := range wallets {
		w := wallet
		worker.Go(func() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// 重扫要拿新数据，先丢掉会话缓存
			j.analyzer.ClearWalletCache(ctx, w)
			if _, err := j.analyzer.AnalyzeWalletTrades(ctx, w, service.WithTrigger(service.TRIGGER_RESCAN)); err != nil {
				failed.Add(1)
				j.tl.Warn("❌ 定时重扫失败", zap.String("wallet", w), zap.Error(err))
			}
		})
	}
	worker.Wait()

	j.tl.Info("Tracked wallet rescan completed",
		zap.Int("wallets", len(wallets)),
		zap.Int64("failed", failed.Load()),
		zap.Float64("elapsed_seconds", time.Since(startTime).Seconds()))
	return nil
}
