package dao

import (
	"context"
	"errors"
	"time"

	"soltrack/internal/scanner/model"
	"soltrack/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tokenDAO 实现TokenDAO接口
type tokenDAO struct {
	db         *gorm.DB
	rds        *redis.Client
	localCache *cache.Cache
}

// NewTokenDAO 创建TokenDAO实例
func NewTokenDAO(db *gorm.DB, rds *redis.Client) TokenDAO {
	localCache := cache.New(10*time.Minute, time.Minute)
	return &tokenDAO{
		db:         db,
		rds:        rds,
		localCache: localCache,
	}
}

func (t *tokenDAO) GetTokenInfo(ctx context.Context, mint string) (*model.TokenInfo, error) {
	cacheKey := utils.TokenInfoKey(mint)

	// 先查本地缓存
	if cached, found := t.localCache.Get(cacheKey); found {
		if tokenInfo, ok := cached.(*model.TokenInfo); ok {
			return tokenInfo, nil
		}
	}

	// 再查Redis缓存
	if t.rds != nil {
		cached, err := t.rds.Get(ctx, cacheKey).Result()
		if err == nil {
			if cached == "null" {
				return nil, nil
			}

			var tokenInfo model.TokenInfo
			if sonic.Unmarshal([]byte(cached), &tokenInfo) == nil {
				// 更新本地缓存
				t.localCache.Set(cacheKey, &tokenInfo, cache.DefaultExpiration)
				return &tokenInfo, nil
			}
		}
	}

	// 查数据库
	if t.db == nil {
		return nil, nil
	}
	var tokenInfo model.TokenInfo
	err := t.db.WithContext(ctx).
		Where("mint = ?", mint).
		First(&tokenInfo).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 缓存空结果，避免缓存穿透
			t.localCache.Set(cacheKey, (*model.TokenInfo)(nil), 1*time.Minute)
			if t.rds != nil {
				t.rds.Set(ctx, cacheKey, "null", 1*time.Minute)
			}
			return nil, nil
		}
		return nil, err
	}

	t.updateTokenInfoCache(ctx, cacheKey, &tokenInfo)
	return &tokenInfo, nil
}

func (t *tokenDAO) UpsertTokenInfos(ctx context.Context, infos []*model.TokenInfo) error {
	if len(infos) == 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	for _, info := range infos {
		info.UpdatedAt = now
	}

	if t.db != nil {
		err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "mint"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"name":       gorm.Expr("EXCLUDED.name"),
				"symbol":     gorm.Expr("EXCLUDED.symbol"),
				"logo":       gorm.Expr("EXCLUDED.logo"),
				"decimals":   gorm.Expr("EXCLUDED.decimals"),
				"updated_at": gorm.Expr("EXCLUDED.updated_at"),
			}),
		}).CreateInBatches(infos, 500).Error
		if err != nil {
			return err
		}
	}

	for _, info := range infos {
		t.updateTokenInfoCache(ctx, utils.TokenInfoKey(info.Mint), info)
	}
	return nil
}

// updateTokenInfoCache 更新代币信息缓存
func (t *tokenDAO) updateTokenInfoCache(ctx context.Context, cacheKey string, tokenInfo *model.TokenInfo) {
	// 更新本地缓存
	t.localCache.Set(cacheKey, tokenInfo, cache.DefaultExpiration)

	// 更新Redis缓存
	if t.rds == nil {
		return
	}
	if data, err := sonic.Marshal(tokenInfo); err == nil {
		t.rds.Set(ctx, cacheKey, string(data), 30*time.Minute) // 代币信息相对稳定，缓存时间长一些
	}
}

func (t *tokenDAO) ClearCache(ctx context.Context, mint string) {
	cacheKey := utils.TokenInfoKey(mint)
	t.localCache.Delete(cacheKey)
	if t.rds != nil {
		t.rds.Del(ctx, cacheKey)
	}
}

func (t *tokenDAO) FlushCache(ctx context.Context) {
	t.localCache.Flush()
	if t.rds == nil {
		return
	}

	iter := t.rds.Scan(ctx, 0, utils.TokenInfoKey("*"), 200).Iterator()
	for iter.Next(ctx) {
		t.rds.Del(ctx, iter.Val())
	}
}
