package dao

import (
	"context"

	"soltrack/internal/scanner/model"
)

// WalletScanDAO 定义钱包扫描元数据访问接口
type WalletScanDAO interface {
	// UpsertScanStarted 扫描开始时创建或刷新钱包行，清掉上一次的完成标记与错误
	UpsertScanStarted(ctx context.Context, walletAddress string) error

	// MarkScanCompleted 扫描成功，写入统计信息与完成标记
	MarkScanCompleted(ctx context.Context, scan *model.WalletScan) error

	// MarkScanFailed 扫描失败，记录失败原因
	MarkScanFailed(ctx context.Context, walletAddress string, scanErr string) error

	// GetByWallet 查询单个钱包的扫描行，不存在时返回(nil, nil)
	GetByWallet(ctx context.Context, walletAddress string) (*model.WalletScan, error)

	// ListTracked 获取所有被跟踪钱包的地址
	ListTracked(ctx context.Context) ([]string, error)

	// SetTracked 设置钱包跟踪标记，行不存在时创建
	SetTracked(ctx context.Context, walletAddress string, tracked bool) error
}
