package job

import (
	"context"
	"errors"
	"time"

	"soltrack/internal/scanner/config"
	"soltrack/internal/scanner/dao"

	"go.uber.org/zap"
)

// TradeCleanup 定时清理过期的成交记录，控制主库表体积
type TradeCleanup struct {
	cfg  config.Config
	tl   *zap.Logger
	daos *dao.DAOManager
}

// NewTradeCleanup 创建成交记录清理任务
func NewTradeCleanup(cfg config.Config, logger *zap.Logger, daos *dao.DAOManager) *TradeCleanup {
	return &TradeCleanup{
		cfg:  cfg,
		tl:   logger,
		daos: daos,
	}
}

// Run 执行清理任务
// 归档库保留全量历史，主库只留最近一个月
func (j *TradeCleanup) Run(ctx context.Context) error {
	j.tl.Info("Starting trade cleanup job")

	oneMonthAgo := time.Now().AddDate(0, -1, 0)

	deleted, err := j.daos.TradeDAO.DeleteOlderThan(ctx, oneMonthAgo)
	if err != nil {
		if errors.Is(err, dao.ErrNoDatastore) {
			return nil
		}
		j.tl.Warn("Failed to cleanup old trades",
			zap.Error(err),
			zap.Int64("cutoff_timestamp", oneMonthAgo.UnixMilli()))
		return err
	}

	j.tl.Info("Trade cleanup completed successfully",
		zap.Int64("deleted_rows", deleted),
		zap.Int64("cutoff_timestamp", oneMonthAgo.UnixMilli()))
	return nil
}
