package dao

import (
	"context"

	"soltrack/internal/scanner/model"
)

// TokenDAO 定义代币信息数据访问接口
type TokenDAO interface {
	// GetTokenInfo 三级缓存读取代币信息：本地 -> Redis -> 数据库
	// 三级都未命中时返回(nil, nil)，由调用方走目录解析
	GetTokenInfo(ctx context.Context, mint string) (*model.TokenInfo, error)

	// UpsertTokenInfos 批量落库并刷新缓存，mint冲突时更新展示字段
	UpsertTokenInfos(ctx context.Context, infos []*model.TokenInfo) error

	// ClearCache 清除代币信息的本地与Redis缓存
	ClearCache(ctx context.Context, mint string)

	// FlushCache 清空全部代币信息缓存，数据库内容不受影响
	FlushCache(ctx context.Context)
}
