package cache

import (
	"context"
	"time"

	"soltrack/internal/scanner/model"
	"soltrack/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	SESSION_CACHE_TTL       = 30 * time.Minute // 分析结果会话缓存过期时间
	SESSION_CACHE_REDIS_TTL = 30 * time.Minute
)

// SessionCache 钱包分析结果的会话缓存
// 本地go-cache打头阵，Redis作为跨进程二级缓存，均为30分钟TTL
// rdb为nil时退化为纯本地缓存，库内嵌场景不强依赖Redis
type SessionCache struct {
	localCache *cache.Cache
	rdb        *redis.Client
	tl         *zap.Logger
}

func NewSessionCache(rdb *redis.Client, tl *zap.Logger) *SessionCache {
	return &SessionCache{
		localCache: cache.New(SESSION_CACHE_TTL, time.Minute),
		rdb:        rdb,
		tl:         tl,
	}
}

// GetResult 取指定钱包的缓存分析结果，miss时返回(nil, false)
func (c *SessionCache) GetResult(ctx context.Context, walletAddress string) (*model.AnalysisResult, bool) {
	cacheKey := utils.SessionResultKey(walletAddress)

	if cached, found := c.localCache.Get(cacheKey); found {
		if result, ok := cached.(*model.AnalysisResult); ok {
			return result, true
		}
	}

	if c.rdb == nil {
		return nil, false
	}

	cached, err := c.rdb.Get(ctx, cacheKey).Result()
	if err != nil {
		return nil, false
	}

	var result model.AnalysisResult
	if sonic.Unmarshal([]byte(cached), &result) != nil {
		return nil, false
	}
	// 回填本地缓存
	c.localCache.Set(cacheKey, &result, cache.DefaultExpiration)
	return &result, true
}

// SetResult 写入分析结果，两级缓存同时更新
func (c *SessionCache) SetResult(ctx context.Context, walletAddress string, result *model.AnalysisResult) {
	cacheKey := utils.SessionResultKey(walletAddress)
	c.localCache.Set(cacheKey, result, cache.DefaultExpiration)

	if c.rdb == nil {
		return
	}
	data, err := sonic.Marshal(result)
	if err != nil {
		c.tl.Warn("❌ 序列化分析结果失败", zap.String("wallet", walletAddress), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, cacheKey, string(data), SESSION_CACHE_REDIS_TTL).Err(); err != nil {
		c.tl.Warn("❌ 写入Redis会话缓存失败", zap.String("wallet", walletAddress), zap.Error(err))
	}
}

// DeleteWallet 清除单个钱包的缓存结果
func (c *SessionCache) DeleteWallet(ctx context.Context, walletAddress string) {
	cacheKey := utils.SessionResultKey(walletAddress)
	c.localCache.Delete(cacheKey)
	if c.rdb != nil {
		c.rdb.Del(ctx, cacheKey)
	}
}

// Flush 清空所有会话缓存
func (c *SessionCache) Flush(ctx context.Context) {
	c.localCache.Flush()
	if c.rdb == nil {
		return
	}

	iter := c.rdb.Scan(ctx, 0, utils.SessionResultKey("*"), 200).Iterator()
	for iter.Next(ctx) {
		c.rdb.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.tl.Warn("❌ 清空Redis会话缓存失败", zap.Error(err))
	}
}
