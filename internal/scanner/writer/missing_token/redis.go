package missingtoken

import (
	"context"
	"time"

	"soltrack/internal/scanner/writer"
	"soltrack/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	REDIS_MISSING_TOKEN_TTL = 26 * time.Hour
	RETRY_COUNT             = 3
)

// RedisMissingTokenWriter 记录目录里解析不到的代币
// zset成员为mint，score为最近一次出现时间，补录任务按score扫描
type RedisMissingTokenWriter struct {
	redis *redis.Client
	tl    *zap.Logger
}

func NewRedisMissingTokenWriter(rdb *redis.Client, tl *zap.Logger) writer.BatchWriter[string] {
	return &RedisMissingTokenWriter{redis: rdb, tl: tl}
}

func (w *RedisMissingTokenWriter) BWrite(ctx context.Context, mints []string) error {
	if len(mints) == 0 {
		return nil
	}

	pipe := w.redis.Pipeline()

	key := utils.MissingTokenInfoKey()
	now := float64(time.Now().UnixMilli())
	for _, mint := range mints {
		pipe.ZAdd(ctx, key, redis.Z{Score: now, Member: mint})
	}

	pipe.Expire(ctx, key, REDIS_MISSING_TOKEN_TTL)

	// 执行 Pipeline 并添加重试机制
	var err error
	for attempt := 0; attempt < RETRY_COUNT; attempt++ {
		_, err = pipe.Exec(ctx)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		w.tl.Warn("❌ Redis pipeline 执行失败，超过最大重试次数", zap.Error(err))
		return err
	}
	return nil
}

func (w *RedisMissingTokenWriter) Close() error {
	return nil
}
