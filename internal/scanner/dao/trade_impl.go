package dao

import (
	"context"
	"time"

	"soltrack/internal/scanner/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tradeDAO 实现TradeDAO接口
// db为nil时所有操作返回ErrNoDatastore，成交记录不允许静默丢失
type tradeDAO struct {
	db *gorm.DB
}

// NewTradeDAO 创建TradeDAO实例
func NewTradeDAO(db *gorm.DB) TradeDAO {
	return &tradeDAO{db: db}
}

// InsertIgnoreDuplicates 批量写入，匹配唯一索引 uidx_signature_wallet
// 并发扫描同一钱包时以数据库约束为准，不做先查后插
func (t *tradeDAO) InsertIgnoreDuplicates(ctx context.Context, trades []*model.TradeRecord) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	if t.db == nil {
		return 0, ErrNoDatastore
	}

	res := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "signature"},
			{Name: "wallet_address"},
		},
		DoNothing: true,
	}).CreateInBatches(trades, 1000)

	return res.RowsAffected, res.Error
}

func (t *tradeDAO) ListByWallet(ctx context.Context, walletAddress string, limit, offset int) ([]*model.TradeRecord, error) {
	if t.db == nil {
		return nil, ErrNoDatastore
	}

	var trades []*model.TradeRecord
	err := t.db.WithContext(ctx).
		Where("wallet_address = ?", walletAddress).
		Order("transaction_time DESC").
		Limit(limit).
		Offset(offset).
		Find(&trades).Error

	if err != nil {
		return nil, err
	}
	return trades, nil
}

func (t *tradeDAO) ListStarred(ctx context.Context, walletAddress string) ([]*model.TradeRecord, error) {
	if t.db == nil {
		return nil, ErrNoDatastore
	}

	var trades []*model.TradeRecord
	err := t.db.WithContext(ctx).
		Where("wallet_address = ? AND starred = ?", walletAddress, true).
		Order("transaction_time DESC").
		Find(&trades).Error

	if err != nil {
		return nil, err
	}
	return trades, nil
}

func (t *tradeDAO) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	if t.db == nil {
		return 0, ErrNoDatastore
	}

	res := t.db.WithContext(ctx).
		Where("transaction_time < ?", before.UnixMilli()).
		Delete(&model.TradeRecord{})

	return res.RowsAffected, res.Error
}
