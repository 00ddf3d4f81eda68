package job

import (
	"context"
	"fmt"
	"time"

	"soltrack/internal/scanner/config"
	"soltrack/internal/scanner/dao"
	"soltrack/internal/scanner/model"
	"soltrack/internal/scanner/repository"
	"soltrack/pkg/jupiter"
	"soltrack/pkg/moralis"
	"soltrack/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 单轮最多补录的mint数量
const MISSING_TOKEN_BATCH_LIMIT = 100

// HandleMissingTokenInfo 补录扫描期间没能从目录解析出来的代币信息
// 扫描主流程给这类mint填占位信息并进待补齐队列，这里定时重查目录兜底
// 目录仍查不到的新币再走Moralis网关逐个查链上元数据
type HandleMissingTokenInfo struct {
	cfg      config.Config
	tl       *zap.Logger
	repo     repository.Repository
	daos     *dao.DAOManager
	catalog  *jupiter.JupiterClient
	fallback *moralis.MoralisClient // 未启用时为nil
}

func NewHandleMissingTokenInfo(cfg config.Config, logger *zap.Logger, repo repository.Repository, daos *dao.DAOManager) *HandleMissingTokenInfo {
	j := &HandleMissingTokenInfo{
		cfg:     cfg,
		tl:      logger,
		repo:    repo,
		daos:    daos,
		catalog: jupiter.NewJupiterClient(cfg.Jupiter, logger),
	}
	if cfg.Moralis.Enable && cfg.Moralis.GatewayURL != "" {
		j.fallback = moralis.NewMoralisClient(cfg.Moralis, logger)
	}
	return j
}

func (j *HandleMissingTokenInfo) Run(ctx context.Context) error {
	startTime := time.Now()

	rdb := j.repo.GetMetricsRDB()
	if rdb == nil {
		return nil
	}

	// 1. 从 Redis 查询待处理的数据
	key := utils.MissingTokenInfoKey()
	members, err := j.queryPendingMembers(ctx, rdb, key)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		j.tl.Debug("No missing token info to process")
		return nil
	}

	mints := make([]string, 0, len(members))
	for _, member := range members {
		mint, ok := member.Member.(string)
		if !ok {
			j.tl.Warn("Invalid member type", zap.Any("member", member.Member))
			continue
		}
		mints = append(mints, mint)
	}

	// 2. 重查目录；目录暂时不可用时保留队列，下轮再试
	resolved, err := j.resolveFromCatalog(ctx, mints)
	if err != nil {
		return err
	}

	// 3. 目录没命中的再走网关兜底
	if j.fallback != nil {
		resolved = append(resolved, j.resolveFromGateway(ctx, mints, resolved)...)
	}

	// 4. 命中的条目落库并刷新缓存，覆盖掉占位信息
	if len(resolved) > 0 {
		if err := j.daos.TokenDAO.UpsertTokenInfos(ctx, resolved); err != nil {
			return fmt.Errorf("upsert resolved token infos: %w", err)
		}
	}

	// 5. 已处理的成员一律出队：哪里都查不到的mint保持占位，不反复重查
	j.removeProcessedMembers(ctx, rdb, key, members)

	j.tl.Info("Successfully processed missing token info",
		zap.Int("total_members", len(members)),
		zap.Int("resolved", len(resolved)),
		zap.Float64("elapsed_seconds", time.Since(startTime).Seconds()))
	return nil
}

// queryPendingMembers 从 Redis 查询待处理的数据
// 只取20秒前入队的成员，避开还在进行中的扫描
func (j *HandleMissingTokenInfo) queryPendingMembers(ctx context.Context, rdb *redis.Client, key string) ([]redis.Z, error) {
	maxScore := time.Now().Add(-20 * time.Second).UnixMilli()

	members, err := rdb.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:    "0",
		Max:    fmt.Sprintf("%d", maxScore),
		Offset: 0,
		Count:  MISSING_TOKEN_BATCH_LIMIT,
	}).Result()

	if err != nil {
		j.tl.Warn("Failed to query missing token info from Redis", zap.Error(err))
		return nil, err
	}

	return members, nil
}

// resolveFromCatalog 重新拉取目录并挑出这批mint命中的条目
func (j *HandleMissingTokenInfo) resolveFromCatalog(ctx context.Context, mints []string) ([]*model.TokenInfo, error) {
	tokens, err := j.catalog.GetTokenCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch token catalog: %w", err)
	}

	byMint := make(map[string]jupiter.CatalogToken, len(tokens))
	for _, tok := range tokens {
		byMint[tok.Address] = tok
	}

	resolved := make([]*model.TokenInfo, 0, len(mints))
	for _, mint := range mints {
		tok, ok := byMint[mint]
		if !ok {
			continue
		}
		resolved = append(resolved, &model.TokenInfo{
			Mint:     mint,
			Name:     tok.Name,
			Symbol:   tok.Symbol,
			Logo:     tok.LogoURI,
			Decimals: uint8(tok.Decimals),
		})
	}
	return resolved, nil
}

// resolveFromGateway 对目录没命中的mint逐个查Moralis网关
// 单个mint查询失败只告警，本轮放弃该mint
func (j *HandleMissingTokenInfo) resolveFromGateway(ctx context.Context, mints []string, resolved []*model.TokenInfo) []*model.TokenInfo {
	hit := make(map[string]struct{}, len(resolved))
	for _, info := range resolved {
		hit[info.Mint] = struct{}{}
	}

	extra := make([]*model.TokenInfo, 0)
	for _, mint := range mints {
		if _, ok := hit[mint]; ok {
			continue
		}
		meta, err := j.fallback.GetSolanaTokenMetadata(ctx, mint)
		if err != nil {
			j.tl.Warn("Failed to fetch token metadata from gateway", zap.String("mint", mint), zap.Error(err))
			continue
		}
		if meta == nil {
			continue
		}
		extra = append(extra, &model.TokenInfo{
			Mint:     mint,
			Name:     meta.Name,
			Symbol:   meta.Symbol,
			Logo:     meta.Logo,
			Decimals: meta.DecimalsUint8(),
		})
	}
	return extra
}

// removeProcessedMembers 删除已处理的 Redis 成员
func (j *HandleMissingTokenInfo) removeProcessedMembers(ctx context.Context, rdb *redis.Client, key string, members []redis.Z) {
	if len(members) == 0 {
		return
	}

	membersToRemove := make([]interface{}, len(members))
	for i, member := range members {
		membersToRemove[i] = member.Member
	}

	if err := rdb.ZRem(ctx, key, membersToRemove...).Err(); err != nil {
		j.tl.Warn("Failed to remove processed members from Redis", zap.Error(err))
	} else {
		j.tl.Debug("Removed processed members from Redis", zap.Int("count", len(members)))
	}
}
