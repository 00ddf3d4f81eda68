package trade

import (
	"context"
	"time"

	"soltrack/internal/scanner/model"
	"soltrack/internal/scanner/writer"
	tradeutils "soltrack/pkg/utils/trade_utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	RETRY_COUNT = 3
)

// ArchiveTradeWriter 把成交记录异步落到归档库
// 成交记录不可变，(signature, wallet_address) 冲突直接忽略
type ArchiveTradeWriter struct {
	db *gorm.DB
	tl *zap.Logger
}

func NewArchiveTradeWriter(db *gorm.DB, tl *zap.Logger) writer.BatchWriter[model.TradeRecord] {
	return &ArchiveTradeWriter{db: db, tl: tl}
}

func (w *ArchiveTradeWriter) BWrite(ctx context.Context, trades []model.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	trades = tradeutils.DeduplicateTrades(trades)

	newCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	// 重试机制
	var err error
	for attempt := 0; attempt < RETRY_COUNT; attempt++ {
		err = w.db.WithContext(newCtx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "signature"},
				{Name: "wallet_address"},
			},
			DoNothing: true,
		}).CreateInBatches(trades, 1000).Error

		if err == nil {
			break // 成功则退出重试
		}
	}
	if err != nil {
		w.tl.Warn("❌ 归档库写入失败，超过最大重试次数", zap.Error(err), zap.Int("count", len(trades)))
		return err
	}
	return nil
}

func (w *ArchiveTradeWriter) Close() error {
	return nil
}
