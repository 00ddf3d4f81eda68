package tradeutils

import (
	"fmt"

	"soltrack/internal/scanner/model"
)

// 根据signature, wallet_address去重，入库前先去掉同批次内的重复记录
func DeduplicateTrades(trades []model.TradeRecord) []model.TradeRecord {
	deduplicated := make([]model.TradeRecord, 0, len(trades))
	seen := make(map[string]struct{})
	for _, trade := range trades {
		key := fmt.Sprintf("%s:%s", trade.Signature, trade.WalletAddress)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			deduplicated = append(deduplicated, trade)
		}
	}
	return deduplicated
}
