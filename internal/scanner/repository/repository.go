package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"soltrack/internal/scanner/config"
	"soltrack/pkg/database"
	"soltrack/pkg/elasticsearch"
	"soltrack/pkg/solana_client"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var once sync.Once
var r *repositoryImpl

func New(cfg config.Config, logger *zap.Logger) Repository {
	once.Do(func() {
		r = &repositoryImpl{
			cfg:    cfg,
			logger: logger,
		}
		r.init()
	})
	return r
}

type repositoryImpl struct {
	cfg        config.Config
	logger     *zap.Logger
	db         *gorm.DB
	archiveDB  *gorm.DB
	mainRdb    *redis.Client
	metricsRdb *redis.Client
	priceRdb   *redis.Client
	mq         *kafka.Writer
	solanaPool *solana_client.Pool
	es         *elasticsearch.Client
}

func (r *repositoryImpl) init() {
	var err error
	r.db, err = database.InitPG(r.cfg.Postgres.DSN)

	if err != nil {
		panic(err)
	}

	// 初始化归档库（可选，DSN 为空则跳过）
	if strings.TrimSpace(r.cfg.Archive.DSN) != "" {
		r.archiveDB, err = database.InitArchiveDB(r.cfg.Archive.DSN)
		if err != nil {
			r.logger.Warn("failed to connect to archive db, continue without it", zap.Error(err))
		}
	} else {
		r.logger.Info("archive dsn empty, skip archive initialization")
	}

	// 初始化 Main RDB
	r.mainRdb = redis.NewClient(&redis.Options{
		Addr:     r.cfg.Redis.Address,
		Password: r.cfg.Redis.Password,
		DB:       r.cfg.Redis.DB,
		PoolSize: 20,
	})

	if err := r.mainRdb.Ping(context.Background()).Err(); err != nil {
		r.logger.Warn("failed to connect to redis, continue", zap.Error(err))
	}

	// 初始化 Metrics RDB
	r.metricsRdb = redis.NewClient(&redis.Options{
		Addr:     r.cfg.Redis.Address,
		Password: r.cfg.Redis.Password,
		DB:       r.cfg.Redis.DBMetrics,
	})

	if err := r.metricsRdb.Ping(context.Background()).Err(); err != nil {
		r.logger.Warn("failed to connect to metrics redis, continue", zap.Error(err))
	}

	// 初始化 Price RDB
	r.priceRdb = redis.NewClient(&redis.Options{
		Addr:     r.cfg.Redis.Address,
		Password: r.cfg.Redis.Password,
		DB:       r.cfg.Redis.DBPrice,
	})

	if err := r.priceRdb.Ping(context.Background()).Err(); err != nil {
		r.logger.Warn("failed to connect to price redis, continue", zap.Error(err))
	}

	brokers := strings.Split(r.cfg.Kafka.Brokers, ",")
	r.mq = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    1000,
		BatchBytes:   1024 * 1024, // 1MB
		Async:        true,
		RequiredAcks: kafka.RequireNone,
		Compression:  kafka.Snappy,
		// 添加连接控制
		MaxAttempts:  5,
		WriteTimeout: 500 * time.Millisecond, // 降低单次写入超时时间
	}

	// 初始化rpc节点池
	r.solanaPool, err = solana_client.NewPool(r.cfg.SolanaRpcUrls, r.logger)
	if err != nil {
		panic(err)
	}

	// 初始化 Elasticsearch（可选，地址为空则跳过）
	if len(r.cfg.Elasticsearch.Addresses) > 0 {
		r.es, err = elasticsearch.NewClient(elasticsearch.Config{
			Addresses: r.cfg.Elasticsearch.Addresses,
			Username:  r.cfg.Elasticsearch.Username,
			Password:  r.cfg.Elasticsearch.Password,
			Indexes: map[string]map[string]interface{}{
				r.cfg.Elasticsearch.TradesIndexName: tradesIndexMapping(),
			},
		}, r.logger)
		if err != nil {
			r.logger.Warn("failed to connect to elasticsearch, continue without it", zap.Error(err))
		}
	} else {
		r.logger.Info("elasticsearch addresses empty, skip es initialization")
	}
}

// tradesIndexMapping 成交检索索引结构，字段与writer写入的文档对齐
func tradesIndexMapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"signature":        map[string]interface{}{"type": "keyword"},
				"wallet_address":   map[string]interface{}{"type": "keyword"},
				"user_id":          map[string]interface{}{"type": "keyword"},
				"trade_kind":       map[string]interface{}{"type": "keyword"},
				"mint":             map[string]interface{}{"type": "keyword"},
				"token_symbol":     map[string]interface{}{"type": "text"},
				"token_name":       map[string]interface{}{"type": "text"},
				"token_delta":      map[string]interface{}{"type": "double"},
				"native_amount":    map[string]interface{}{"type": "double"},
				"usd_value":        map[string]interface{}{"type": "double"},
				"fee":              map[string]interface{}{"type": "double"},
				"transaction_time": map[string]interface{}{"type": "date"},
				"created_at":       map[string]interface{}{"type": "date"},
			},
		},
	}
}

func (r *repositoryImpl) GetMainRDB() *redis.Client {
	return r.mainRdb
}

func (r *repositoryImpl) GetMetricsRDB() *redis.Client {
	return r.metricsRdb
}

func (r *repositoryImpl) GetPriceRDB() *redis.Client {
	return r.priceRdb
}

func (r *repositoryImpl) GetDB() *gorm.DB {
	return r.db
}

func (r *repositoryImpl) GetArchiveDB() *gorm.DB {
	return r.archiveDB
}

func (r *repositoryImpl) GetMQ() MQClient {
	return r.mq
}

func (r *repositoryImpl) GetSolanaPool() *solana_client.Pool {
	return r.solanaPool
}

func (r *repositoryImpl) GetES() *elasticsearch.Client {
	return r.es
}

func (r *repositoryImpl) Close() error {
	if r.db != nil {
		sqlDB, _ := r.db.DB()
		sqlDB.Close()
	}
	if r.archiveDB != nil {
		sqlDB, _ := r.archiveDB.DB()
		sqlDB.Close()
	}
	if r.mainRdb != nil {
		r.mainRdb.Close()
	}
	if r.metricsRdb != nil {
		r.metricsRdb.Close()
	}
	if r.priceRdb != nil {
		r.priceRdb.Close()
	}
	if r.mq != nil {
		r.mq.Close()
	}
	return nil
}
