package cache

import (
	"context"
	"time"

	"soltrack/pkg/utils"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	PRICE_CACHE_TTL       = time.Hour      // 本地价格缓存过期时间
	PRICE_CACHE_REDIS_TTL = 26 * time.Hour // Redis中按天价格TTL
)

// PriceCache 原生币种按天美元价格缓存，键为UTC日期
type PriceCache struct {
	localCache *cache.Cache
	rdb        *redis.Client
	tl         *zap.Logger
}

func NewPriceCache(rdb *redis.Client, tl *zap.Logger) *PriceCache {
	return &PriceCache{
		localCache: cache.New(PRICE_CACHE_TTL, time.Minute),
		rdb:        rdb,
		tl:         tl,
	}
}

// DayKey UTC日期串，同一天的所有交易共享一个价格点
func DayKey(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// GetDay 取指定日期的价格，miss时返回(zero, false)
func (c *PriceCache) GetDay(ctx context.Context, day time.Time) (decimal.Decimal, bool) {
	cacheKey := utils.PriceDayKey(DayKey(day))

	if cached, found := c.localCache.Get(cacheKey); found {
		if price, ok := cached.(decimal.Decimal); ok {
			return price, true
		}
	}

	if c.rdb == nil {
		return decimal.Zero, false
	}

	cached, err := c.rdb.Get(ctx, cacheKey).Result()
	if err != nil {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(cached)
	if err != nil {
		return decimal.Zero, false
	}
	c.localCache.Set(cacheKey, price, cache.DefaultExpiration)
	return price, true
}

// SetDay 写入指定日期的价格
func (c *PriceCache) SetDay(ctx context.Context, day time.Time, price decimal.Decimal) {
	cacheKey := utils.PriceDayKey(DayKey(day))
	c.localCache.Set(cacheKey, price, cache.DefaultExpiration)

	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey, price.String(), PRICE_CACHE_REDIS_TTL).Err(); err != nil {
		c.tl.Warn("❌ 写入Redis价格缓存失败", zap.String("day", DayKey(day)), zap.Error(err))
	}
}

// Flush 清空价格缓存
func (c *PriceCache) Flush(ctx context.Context) {
	c.localCache.Flush()
	if c.rdb == nil {
		return
	}

	iter := c.rdb.Scan(ctx, 0, utils.PriceDayKey("*"), 200).Iterator()
	for iter.Next(ctx) {
		c.rdb.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.tl.Warn("❌ 清空Redis价格缓存失败", zap.Error(err))
	}
}
