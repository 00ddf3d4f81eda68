package service

import (
	"context"
	"time"

	"soltrack/internal/scanner/config"
	"soltrack/internal/scanner/model"
	"soltrack/internal/scanner/repository"
	"soltrack/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const LATEST_TRADES_KEEP = 50

// LatestTradesService 负责维护「钱包最新成交」列表
// 数据结构：
//
//	key:   trade_scan:monitor:latest_trades:<wallet_address>
//	type:  zset
//	score: t_trade_record.transaction_time（毫秒时间戳）
//	member: 一条 TradeEvent 的 JSON 字符串（与 Kafka 推送的消息体一致）
//
// 规则：
//   - 每条新成交写入一次 ZADD
//   - 每次写入后只保留最新 50 条（按时间排序）
//   - key 过期时间：7 天
type LatestTradesService struct {
	cfg  config.Config
	tl   *zap.Logger
	repo repository.Repository
}

func NewLatestTradesService(cfg config.Config, logger *zap.Logger, repo repository.Repository) *LatestTradesService {
	return &LatestTradesService{
		cfg:  cfg,
		tl:   logger,
		repo: repo,
	}
}

// Record 接收一条已分类的成交记录，写入该钱包的「最新成交」Redis列表
func (s *LatestTradesService) Record(tr *model.TradeRecord) {
	if tr == nil {
		return
	}
	rdb := s.repo.GetMetricsRDB()
	if rdb == nil {
		// 未配置 metrics redis 时直接跳过
		return
	}

	// 使用较短超时，避免阻塞扫描主流程
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// 与 Kafka 推送保持一致：用 TradeEvent 作为成员内容
	event := model.NewTradeEvent(*tr)
	jsonData, err := sonic.Marshal(event)
	if err != nil {
		s.tl.Warn("marshal TradeEvent failed for latest trades",
			zap.Error(err),
			zap.String("wallet_address", tr.WalletAddress),
			zap.String("signature", tr.Signature),
		)
		return
	}

	key := utils.LatestTradesKey(tr.WalletAddress)
	score := float64(tr.TransactionTime) // ms 时间戳

	if err := s.zaddLatestTrade(ctx, rdb, key, score, string(jsonData)); err != nil {
		s.tl.Warn("update latest trades zset failed",
			zap.Error(err),
			zap.String("key", key),
		)
	}
}

// zaddLatestTrade 写入一条最新成交，并维护 zset 大小 & TTL
func (s *LatestTradesService) zaddLatestTrade(
	ctx context.Context,
	rdb *redis.Client,
	key string,
	score float64,
	member string,
) error {
	// 写入一条记录
	if _, err := rdb.ZAdd(ctx, key, redis.Z{
		Score:  score,
		Member: member,
	}).Result(); err != nil {
		return err
	}

	// 只保留最新 50 条：
	// zset 默认按 score 升序，索引 0 是最旧的那条
	// 移除 0..-51 区间，可确保最多剩 50 条（不足 50 条时不生效）
	if _, err := rdb.ZRemRangeByRank(ctx, key, 0, -(LATEST_TRADES_KEEP + 1)).Result(); err != nil {
		return err
	}

	// 设置过期时间 7 天
	_ = rdb.Expire(ctx, key, 7*24*time.Hour).Err()
	return nil
}

// Close 目前无状态资源需要关闭，预留接口
func (s *LatestTradesService) Close() {
	// no-op
}
