package dao

import (
	"context"
	"time"

	"soltrack/internal/scanner/model"
)

// TradeDAO 定义交易记录数据访问接口
type TradeDAO interface {
	// InsertIgnoreDuplicates 批量写入交易记录，返回实际插入行数
	// 幂等性由(signature, wallet_address)唯一索引保证，冲突行静默跳过
	InsertIgnoreDuplicates(ctx context.Context, trades []*model.TradeRecord) (int64, error)

	// ListByWallet 按钱包地址查询交易记录，交易时间倒序
	ListByWallet(ctx context.Context, walletAddress string, limit, offset int) ([]*model.TradeRecord, error)

	// ListStarred 查询钱包下被标星的交易，交易时间倒序
	ListStarred(ctx context.Context, walletAddress string) ([]*model.TradeRecord, error)

	// DeleteOlderThan 清理交易时间早于before的记录，返回删除行数
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
