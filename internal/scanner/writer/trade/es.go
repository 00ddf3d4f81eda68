package trade

import (
	"context"
	"fmt"
	"time"

	"soltrack/internal/scanner/model"
	"soltrack/internal/scanner/writer"
	"soltrack/pkg/elasticsearch"

	"go.uber.org/zap"
)

// ESTradeWriter 把成交记录写入ES供检索
// 文档ID取 signature_wallet，重放时覆盖同一文档而不产生重复
type ESTradeWriter struct {
	esClient *elasticsearch.Client
	logger   *zap.Logger
	index    string
}

func NewESTradeWriter(esClient *elasticsearch.Client, logger *zap.Logger, index string) writer.BatchWriter[model.TradeRecord] {
	return &ESTradeWriter{
		esClient: esClient,
		logger:   logger,
		index:    index,
	}
}

func (w *ESTradeWriter) BWrite(ctx context.Context, trades []model.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	// 按钱包分组，同一钱包路由到同一分片
	groups := make(map[string][]model.TradeRecord)
	for _, tr := range trades {
		groups[tr.WalletAddress] = append(groups[tr.WalletAddress], tr)
	}

	errChan := make(chan error, len(groups))
	for walletAddr, group := range groups {
		go func(address string, batch []model.TradeRecord) {
			errChan <- w.writeBulkOperations(ctx, address, batch)
		}(walletAddr, group)
	}

	var lastErr error
	for i := 0; i < len(groups); i++ {
		if err := <-errChan; err != nil {
			lastErr = err
		}
	}
	close(errChan)

	if lastErr != nil {
		w.logger.Warn("❌ ES写入失败", zap.Error(lastErr))
	}
	return lastErr
}

func (w *ESTradeWriter) writeBulkOperations(ctx context.Context, walletAddress string, trades []model.TradeRecord) error {
	operations := make([]elasticsearch.BulkOperation, 0, len(trades))

	for _, tr := range trades {
		operations = append(operations, elasticsearch.BulkOperation{
			Action:   "index",
			Index:    w.index,
			ID:       fmt.Sprintf("%s_%s", tr.Signature, tr.WalletAddress),
			Routing:  walletAddress,
			Document: w.convertToESDoc(&tr),
		})
	}

	return w.esClient.BulkWrite(ctx, operations)
}

func (w *ESTradeWriter) Close() error {
	return nil
}

func (w *ESTradeWriter) convertToESDoc(tr *model.TradeRecord) map[string]interface{} {
	return map[string]interface{}{
		"signature":        tr.Signature,
		"wallet_address":   tr.WalletAddress,
		"user_id":          tr.UserID,
		"trade_kind":       tr.TradeKind,
		"mint":             tr.Mint,
		"token_symbol":     tr.TokenSymbol,
		"token_name":       tr.TokenName,
		"token_delta":      tr.TokenDelta.InexactFloat64(),
		"native_amount":    tr.NativeAmount.InexactFloat64(),
		"usd_value":        tr.UsdValue.InexactFloat64(),
		"fee":              tr.Fee.InexactFloat64(),
		"transaction_time": time.UnixMilli(tr.TransactionTime),
		"created_at":       time.UnixMilli(tr.CreatedAt),
	}
}
