package dao

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNoDatastore 数据库未配置时，显式要求持久化的操作返回该错误
// 纯缓存的嵌入式用法允许db为nil，元数据登记类操作此时退化为no-op
var ErrNoDatastore = errors.New("datastore not configured")

// DAOManager 管理所有DAO实例
type DAOManager struct {
	TradeDAO      TradeDAO
	WalletScanDAO WalletScanDAO
	TokenDAO      TokenDAO
}

// NewDAOManager 创建DAO管理器实例
func NewDAOManager(db *gorm.DB, rds *redis.Client) *DAOManager {
	return &DAOManager{
		TradeDAO:      NewTradeDAO(db),
		WalletScanDAO: NewWalletScanDAO(db, rds),
		TokenDAO:      NewTokenDAO(db, rds),
	}
}
