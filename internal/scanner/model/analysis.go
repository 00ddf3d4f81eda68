package model

import (
	"github.com/shopspring/decimal"
)

// AnalysisResult 单次钱包扫描的聚合结果
// 只在会话缓存里短暂存活，过期或显式清除后失效
type AnalysisResult struct {
	WalletAddress string                    `json:"wallet_address"`
	RecentTrades  []*TradeRecord            `json:"recent_trades"`
	TradesByMint  map[string][]*TradeRecord `json:"trades_by_mint"`
	TradeCount    int                       `json:"trade_count"`
	TotalVolume   decimal.Decimal           `json:"total_volume"`   // USD
	UniqueMints   []string                  `json:"unique_mints"`   // 去重后的代币集合
	NativeBalance decimal.Decimal           `json:"native_balance"` // 扫描时SOL余额
	GeneratedAt   int64                     `json:"generated_at"`   // 毫秒时间戳
}

// NewAnalysisResult 从已分类的成交列表构建聚合结果
// trades 按时间倒序传入，构建过程保持顺序
func NewAnalysisResult(walletAddress string, trades []*TradeRecord, generatedAt int64) *AnalysisResult {
	byMint := make(map[string][]*TradeRecord)
	uniq := make([]string, 0)
	seen := make(map[string]struct{})
	volume := decimal.Zero
	for _, tr := range trades {
		byMint[tr.Mint] = append(byMint[tr.Mint], tr)
		if _, ok := seen[tr.Mint]; !ok {
			seen[tr.Mint] = struct{}{}
			uniq = append(uniq, tr.Mint)
		}
		volume = volume.Add(tr.UsdValue)
	}
	return &AnalysisResult{
		WalletAddress: walletAddress,
		RecentTrades:  trades,
		TradesByMint:  byMint,
		TradeCount:    len(trades),
		TotalVolume:   volume,
		UniqueMints:   uniq,
		GeneratedAt:   generatedAt,
	}
}

const (
	SCAN_STEP_DISCOVER = "discovering token accounts"
	SCAN_STEP_COLLECT  = "collecting signatures"
	SCAN_STEP_FETCH    = "fetching transactions"
	SCAN_STEP_METADATA = "loading token metadata"
	SCAN_STEP_CLASSIFY = "classifying trades"
	SCAN_STEP_PERSIST  = "persisting trades"
	SCAN_STEP_DONE     = "scan complete"
)

// ScanStatus 单次扫描的进度快照，增量推送给观察方
type ScanStatus struct {
	WalletAddress       string `json:"wallet_address"`
	TotalSignatures     int    `json:"total_signatures"`
	ProcessedSignatures int    `json:"processed_signatures"`
	UniqueTokens        int    `json:"unique_tokens"`
	TradesFound         int    `json:"trades_found"`
	CurrentStep         string `json:"current_step"`
	IsComplete          bool   `json:"is_complete"`
	Failed              bool   `json:"failed"`
}
