package model

import (
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// WalletScan 钱包扫描元数据行
// 每次扫描结束后更新完成标记与错误信息
type WalletScan struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	WalletAddress string          `gorm:"column:wallet_address;type:varchar(100);not null;uniqueIndex" json:"wallet_address"`
	Tracked       bool            `gorm:"column:tracked;not null;default:false;index" json:"tracked"`
	LastScanAt    int64           `gorm:"column:last_scan_at;not null;default:0" json:"last_scan_at"` // 毫秒时间戳
	ScanCompleted bool            `gorm:"column:scan_completed;not null;default:false" json:"scan_completed"`
	ScanError     string          `gorm:"column:scan_error;type:text" json:"scan_error"`
	TradeCount    int             `gorm:"column:trade_count;not null;default:0" json:"trade_count"`
	TotalVolume   decimal.Decimal `gorm:"column:total_volume;type:decimal(50,20);not null;default:0" json:"total_volume"`
	NativeBalance decimal.Decimal `gorm:"column:native_balance;type:decimal(50,20);not null;default:0" json:"native_balance"`
	UniqueTokens  pq.StringArray  `gorm:"column:unique_tokens;type:text[]" json:"unique_tokens"`
	CreatedAt     int64           `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt     int64           `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (w *WalletScan) TableName() string {
	return "trade_scan.t_wallet_scan"
}
