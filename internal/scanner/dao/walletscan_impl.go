package dao

import (
	"context"
	"errors"
	"time"

	"soltrack/internal/scanner/model"
	"soltrack/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 扫描元数据每次扫描都会改写，只挂Redis短缓存，不加本地层
const WALLET_SCAN_CACHE_TTL = 5 * time.Minute

// walletScanDAO 实现WalletScanDAO接口
// db为nil时登记类操作退化为no-op，查询按不存在处理，跟踪设置返回ErrNoDatastore
type walletScanDAO struct {
	db  *gorm.DB
	rds *redis.Client
}

// NewWalletScanDAO 创建WalletScanDAO实例
func NewWalletScanDAO(db *gorm.DB, rds *redis.Client) WalletScanDAO {
	return &walletScanDAO{db: db, rds: rds}
}

// invalidateCache 写路径统一清缓存，下次读时回填
func (w *walletScanDAO) invalidateCache(ctx context.Context, walletAddress string) {
	if w.rds == nil {
		return
	}
	w.rds.Del(ctx, utils.WalletScanKey(walletAddress))
}

func (w *walletScanDAO) UpsertScanStarted(ctx context.Context, walletAddress string) error {
	if w.db == nil {
		return nil
	}

	now := time.Now().UnixMilli()
	row := &model.WalletScan{
		WalletAddress: walletAddress,
		LastScanAt:    now,
		ScanCompleted: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_scan_at":   now,
			"scan_completed": false,
			"scan_error":     "",
			"updated_at":     now,
		}),
	}).Create(row).Error
	if err == nil {
		w.invalidateCache(ctx, walletAddress)
	}
	return err
}

func (w *walletScanDAO) MarkScanCompleted(ctx context.Context, scan *model.WalletScan) error {
	if w.db == nil {
		return nil
	}

	now := time.Now().UnixMilli()
	scan.ScanCompleted = true
	scan.ScanError = ""
	scan.UpdatedAt = now
	if scan.CreatedAt == 0 {
		scan.CreatedAt = now
	}

	err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_scan_at":   gorm.Expr("EXCLUDED.last_scan_at"),
			"scan_completed": gorm.Expr("EXCLUDED.scan_completed"),
			"scan_error":     gorm.Expr("EXCLUDED.scan_error"),
			"trade_count":    gorm.Expr("EXCLUDED.trade_count"),
			"total_volume":   gorm.Expr("EXCLUDED.total_volume"),
			"native_balance": gorm.Expr("EXCLUDED.native_balance"),
			"unique_tokens":  gorm.Expr("EXCLUDED.unique_tokens"),
			"updated_at":     gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(scan).Error
	if err == nil {
		w.invalidateCache(ctx, scan.WalletAddress)
	}
	return err
}

func (w *walletScanDAO) MarkScanFailed(ctx context.Context, walletAddress string, scanErr string) error {
	if w.db == nil {
		return nil
	}

	err := w.db.WithContext(ctx).
		Model(&model.WalletScan{}).
		Where("wallet_address = ?", walletAddress).
		Updates(map[string]interface{}{
			"scan_completed": false,
			"scan_error":     scanErr,
			"updated_at":     time.Now().UnixMilli(),
		}).Error
	if err == nil {
		w.invalidateCache(ctx, walletAddress)
	}
	return err
}

func (w *walletScanDAO) GetByWallet(ctx context.Context, walletAddress string) (*model.WalletScan, error) {
	cacheKey := utils.WalletScanKey(walletAddress)

	// 先查Redis缓存
	if w.rds != nil {
		cached, err := w.rds.Get(ctx, cacheKey).Result()
		if err == nil {
			if cached == "null" {
				return nil, nil
			}
			var scan model.WalletScan
			if sonic.Unmarshal([]byte(cached), &scan) == nil {
				return &scan, nil
			}
		}
	}

	if w.db == nil {
		return nil, nil
	}

	var scan model.WalletScan
	err := w.db.WithContext(ctx).
		Where("wallet_address = ?", walletAddress).
		First(&scan).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 缓存空结果，避免缓存穿透
			if w.rds != nil {
				w.rds.Set(ctx, cacheKey, "null", time.Minute)
			}
			return nil, nil
		}
		return nil, err
	}

	if w.rds != nil {
		if data, merr := sonic.Marshal(&scan); merr == nil {
			w.rds.Set(ctx, cacheKey, data, WALLET_SCAN_CACHE_TTL)
		}
	}
	return &scan, nil
}

func (w *walletScanDAO) ListTracked(ctx context.Context) ([]string, error) {
	if w.db == nil {
		return nil, nil
	}

	var addrs []string
	err := w.db.WithContext(ctx).
		Model(&model.WalletScan{}).
		Where("tracked = ?", true).
		Order("last_scan_at ASC").
		Pluck("wallet_address", &addrs).Error

	if err != nil {
		return nil, err
	}
	return addrs, nil
}

func (w *walletScanDAO) SetTracked(ctx context.Context, walletAddress string, tracked bool) error {
	if w.db == nil {
		return ErrNoDatastore
	}

	now := time.Now().UnixMilli()
	row := &model.WalletScan{
		WalletAddress: walletAddress,
		Tracked:       tracked,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"tracked":    tracked,
			"updated_at": now,
		}),
	}).Create(row).Error
	if err == nil {
		w.invalidateCache(ctx, walletAddress)
	}
	return err
}
