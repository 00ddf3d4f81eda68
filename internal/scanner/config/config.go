package config

import (
	"fmt"

	"soltrack/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config 定义整个配置的结构
type Config struct {
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Scanner       ScannerConfig       `mapstructure:"scanner"`
	Monitor       MonitorConfig       `mapstructure:"monitor"`
	Jupiter       JupiterConfig       `mapstructure:"jupiter"`
	CoinGecko     CoinGeckoConfig     `mapstructure:"coingecko"`
	Binance       BinanceConfig       `mapstructure:"binance"`
	Moralis       MoralisConfig       `mapstructure:"moralis"`
	SolanaRpcUrls []string            `mapstructure:"solana_rpc_urls"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers          string `mapstructure:"brokers"`
	TopicScanRequest string `mapstructure:"topic_scan_request"`
	TopicTradeEvent  string `mapstructure:"topic_trade_event"`
	GroupID          string `mapstructure:"group_id"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	DBMetrics int    `mapstructure:"db_metrics"`
	DBPrice   int    `mapstructure:"db_price"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ArchiveConfig 分析归档库配置（MySQL 协议），DSN 为空则不启用
type ArchiveConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ElasticsearchConfig struct {
	Addresses       []string `mapstructure:"addresses"`
	Username        string   `mapstructure:"username"`
	Password        string   `mapstructure:"password"`
	TradesIndexName string   `mapstructure:"trades_index_name"`
}

// LogConfig Log 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ScannerConfig 扫描行为配置
type ScannerConfig struct {
	WorkerNum           int `mapstructure:"worker_num"`
	CutoffDays          int `mapstructure:"cutoff_days"`           // 0 表示不限制回溯时间
	RescanIntervalHours int `mapstructure:"rescan_interval_hours"` // 定时重扫已跟踪钱包
}

type MonitorConfig struct {
	Enable         bool   `mapstructure:"enable"`
	PrometheusAddr string `mapstructure:"prometheus_addr"`
}

// JupiterConfig 代币目录源配置
type JupiterConfig struct {
	BaseURL   string  `mapstructure:"base_url"`
	RateLimit float64 `mapstructure:"rate_limit"` // 每秒请求数
	Burst     int     `mapstructure:"burst"`
	Timeout   int     `mapstructure:"timeout"`
}

// CoinGeckoConfig 历史行情源配置
type CoinGeckoConfig struct {
	BaseURL   string  `mapstructure:"base_url"`
	CoinID    string  `mapstructure:"coin_id"`
	APIKey    string  `mapstructure:"api_key"`
	RateLimit float64 `mapstructure:"rate_limit"`
	Timeout   int     `mapstructure:"timeout"`
}

// BinanceConfig 备用行情源配置
type BinanceConfig struct {
	Enable bool   `mapstructure:"enable"`
	Symbol string `mapstructure:"symbol"`
}

// MoralisConfig 元数据兜底源配置，目录查不到的mint走Solana网关重查
type MoralisConfig struct {
	Enable     bool    `mapstructure:"enable"`
	GatewayURL string  `mapstructure:"gateway_url"`
	APIKey     string  `mapstructure:"api_key"`
	RateLimit  float64 `mapstructure:"rate_limit"`
	Timeout    int     `mapstructure:"timeout"`
}

func InitConfig() Config {
	var config Config

	viper.SetConfigName("config.scanner")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config/")

	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}

	if err := mapstructure.Decode(viper.AllSettings(), &config); err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}

	return config
}

func WatchConfig(config *Config) {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := InitConfig()
		*config = newConfig
		logger.SetLogLevel(config.Log.Level)
	})
}
