package repository

import (
	"soltrack/pkg/elasticsearch"
	"soltrack/pkg/solana_client"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

type RedisClient = *redis.Client
type DBClient = *gorm.DB
type MQClient = *kafka.Writer

type Repository interface {
	//DB
	GetMainRDB() RedisClient
	GetMetricsRDB() RedisClient
	GetPriceRDB() RedisClient
	GetDB() DBClient
	GetArchiveDB() DBClient
	GetMQ() MQClient
	GetSolanaPool() *solana_client.Pool
	GetES() *elasticsearch.Client
	Close() error
}
