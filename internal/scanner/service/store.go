package service

import (
	"context"
	"fmt"

	"soltrack/internal/scanner/model"
)

// StoreTrade 落库单条成交记录，(signature, wallet_address)已存在时静默跳过
func (a *Analyzer) StoreTrade(ctx context.Context, userID string, trade *model.TradeRecord) error {
	if trade == nil {
		return nil
	}
	trade.UserID = userID
	if _, err := a.daos.TradeDAO.InsertIgnoreDuplicates(ctx, []*model.TradeRecord{trade}); err != nil {
		return fmt.Errorf("store trade %s: %w", trade.Signature, err)
	}
	return nil
}

// StoreAllTrades 批量落库一次扫描产出的成交记录，返回实际插入条数
// 批内先按(signature, wallet)去重只是优化，跨扫描幂等由数据库唯一索引保证
func (a *Analyzer) StoreAllTrades(ctx context.Context, userID string, trades []*model.TradeRecord) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{}, len(trades))
	deduped := make([]*model.TradeRecord, 0, len(trades))
	for _, tr := range trades {
		if tr == nil {
			continue
		}
		key := tr.Signature + "_" + tr.WalletAddress
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tr.UserID = userID
		deduped = append(deduped, tr)
	}

	inserted, err := a.daos.TradeDAO.InsertIgnoreDuplicates(ctx, deduped)
	if err != nil {
		return 0, fmt.Errorf("store trades: %w", err)
	}
	return int(inserted), nil
}

// GetStoredTrades 分页查询指定钱包已落库的成交记录，交易时间倒序
func (a *Analyzer) GetStoredTrades(ctx context.Context, walletAddress string, limit, offset int) ([]*model.TradeRecord, error) {
	return a.daos.TradeDAO.ListByWallet(ctx, walletAddress, limit, offset)
}

// GetStarredTrades 查询指定钱包被标星的成交记录
func (a *Analyzer) GetStarredTrades(ctx context.Context, walletAddress string) ([]*model.TradeRecord, error) {
	return a.daos.TradeDAO.ListStarred(ctx, walletAddress)
}

// emitTrades 把成交记录扇出到各异步后端：Kafka事件、归档库、搜索索引
// 写入器按配置可缺省，Submit不阻塞扫描主流程
func (a *Analyzer) emitTrades(trades []*model.TradeRecord) {
	for _, tr := range trades {
		if tr == nil {
			continue
		}
		if a.kafkaWriter != nil {
			a.kafkaWriter.Submit(*tr)
		}
		if a.archiveWriter != nil {
			a.archiveWriter.Submit(*tr)
		}
		if a.esWriter != nil {
			a.esWriter.Submit(*tr)
		}
	}
}

// recordLatest 把最新的成交推进「最新成交」Redis列表
// trades按时间倒序传入，超出保留窗口的部分没必要写
func (a *Analyzer) recordLatest(trades []*model.TradeRecord) {
	for i, tr := range trades {
		if i >= LATEST_TRADES_KEEP {
			break
		}
		a.latestTrades.Record(tr)
	}
}

// recordMissingTokens 目录解析失败的mint进待补齐队列，由定时任务兜底重解析
func (a *Analyzer) recordMissingTokens(mints []string) {
	if a.missingWriter == nil {
		return
	}
	for _, mint := range mints {
		a.missingWriter.Submit(mint)
	}
}
