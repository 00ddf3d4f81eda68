package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"soltrack/internal/scanner/cache"
	"soltrack/internal/scanner/config"
	"soltrack/internal/scanner/dao"
	"soltrack/internal/scanner/model"
	"soltrack/internal/scanner/monitor"
	"soltrack/internal/scanner/pipeline"
	"soltrack/internal/scanner/reliability"
	"soltrack/internal/scanner/repository"
	"soltrack/internal/scanner/writer"
	missingtoken "soltrack/internal/scanner/writer/missing_token"
	"soltrack/internal/scanner/writer/trade"
	"soltrack/pkg/binanceprice"
	"soltrack/pkg/coingecko"
	"soltrack/pkg/jupiter"
	"soltrack/pkg/solana_client"

	"github.com/gagliardetto/solana-go"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 扫描触发来源，作为指标label区分流量构成
const (
	TRIGGER_DIRECT = "direct"
	TRIGGER_KAFKA  = "kafka"
	TRIGGER_RESCAN = "rescan"
	TRIGGER_CLI    = "cli"
)

// ScanOption 单次扫描的可选参数
type ScanOption func(*scanOptions)

type scanOptions struct {
	userID  string
	cutoff  int64 // epoch秒，0表示不限制回溯时间
	trigger string
}

// WithUserID 指定请求方用户，非空时扫描结果会落库并归属到该用户
func WithUserID(userID string) ScanOption {
	return func(o *scanOptions) { o.userID = userID }
}

// WithCutoff 指定回溯截止时间（epoch秒），覆盖配置默认值，0表示不限制
func WithCutoff(cutoff int64) ScanOption {
	return func(o *scanOptions) { o.cutoff = cutoff }
}

// WithTrigger 标记扫描触发来源，仅影响指标打点
func WithTrigger(trigger string) ScanOption {
	return func(o *scanOptions) { o.trigger = trigger }
}

// Analyzer 钱包成交分析服务，进程内唯一实例
// 扫描之间共享熔断器、上游客户端与缓存；每次扫描自身的过程状态由ScanContext隔离
type Analyzer struct {
	cfg  config.Config
	tl   *zap.Logger
	repo repository.Repository
	daos *dao.DAOManager

	exec     *reliability.Executor
	sessions *cache.SessionCache
	prices   *cache.PriceCache
	catalog  *jupiter.JupiterClient
	gecko    *coingecko.CoinGeckoClient
	binance  *binanceprice.Client

	latestTrades *LatestTradesService

	kafkaWriter   *writer.AsyncBatchWriter[model.TradeRecord]
	archiveWriter *writer.AsyncBatchWriter[model.TradeRecord]
	esWriter      *writer.AsyncBatchWriter[model.TradeRecord]
	missingWriter *writer.AsyncBatchWriter[string]
	writerCancel  context.CancelFunc

	statusMu   sync.RWMutex
	statusFn   func(model.ScanStatus)
	watchers   map[int64]chan model.ScanStatus
	watcherSeq int64
}

func NewAnalyzer(cfg config.Config, logger *zap.Logger, repo repository.Repository) *Analyzer {
	breaker := reliability.NewCircuitBreaker("upstream", 0, 0, logger)
	exec := reliability.NewExecutor(breaker, logger)

	// RPC调用重试耗尽后轮换到下一个备用节点，目录/行情源与节点无关不轮换
	rpcOps := map[string]struct{}{
		"get_token_accounts":         {},
		"get_signatures_for_address": {},
		"get_transaction":            {},
	}
	exec.SetOnExhausted(func(op string) {
		if _, ok := rpcOps[op]; !ok {
			return
		}
		if pool := repo.GetSolanaPool(); pool != nil {
			pool.Rotate()
		}
	})

	a := &Analyzer{
		cfg:      cfg,
		tl:       logger,
		repo:     repo,
		daos:     dao.NewDAOManager(repo.GetDB(), repo.GetMainRDB()),
		exec:     exec,
		sessions: cache.NewSessionCache(repo.GetMainRDB(), logger),
		prices:   cache.NewPriceCache(repo.GetPriceRDB(), logger),
		catalog:  jupiter.NewJupiterClient(cfg.Jupiter, logger),
		gecko:    coingecko.NewCoinGeckoClient(cfg.CoinGecko, logger),
		watchers: make(map[int64]chan model.ScanStatus),
	}
	if cfg.Binance.Enable {
		a.binance = binanceprice.NewClient(cfg.Binance.Symbol, logger)
	}
	a.latestTrades = NewLatestTradesService(cfg, logger, repo)

	writerCtx, writerCancel := context.WithCancel(context.Background())
	a.writerCancel = writerCancel

	if mq := repo.GetMQ(); mq != nil {
		a.kafkaWriter = writer.NewAsyncBatchWriter(logger,
			trade.NewKafkaTradeEventWriter(mq, logger, cfg.Kafka.TopicTradeEvent),
			200, 300*time.Millisecond, "trade_kafka_writer", 2)
		a.kafkaWriter.Start(writerCtx)
	}
	if adb := repo.GetArchiveDB(); adb != nil {
		a.archiveWriter = writer.NewAsyncBatchWriter(logger,
			trade.NewArchiveTradeWriter(adb, logger),
			1000, 300*time.Millisecond, "trade_archive_writer", 3)
		a.archiveWriter.Start(writerCtx)
	}
	if es := repo.GetES(); es != nil {
		a.esWriter = writer.NewAsyncBatchWriter(logger,
			trade.NewESTradeWriter(es, logger, cfg.Elasticsearch.TradesIndexName),
			1000, 300*time.Millisecond, "trade_es_writer", 3)
		a.esWriter.Start(writerCtx)
	}
	if rdb := repo.GetMetricsRDB(); rdb != nil {
		a.missingWriter = writer.NewAsyncBatchWriter(logger,
			missingtoken.NewRedisMissingTokenWriter(rdb, logger),
			200, time.Second, "missing_token_writer", 1)
		a.missingWriter.Start(writerCtx)
	}

	return a
}

// AnalyzeWalletTrades 对指定钱包执行完整的成交重建，返回聚合分析结果
// 会话缓存命中直接返回；未命中跑完整流水线并回填缓存
// 指定用户时成交记录同步落库，异步后端（Kafka/归档/索引）始终投递
func (a *Analyzer) AnalyzeWalletTrades(ctx context.Context, walletAddress string, opts ...ScanOption) (*model.AnalysisResult, error) {
	wallet, err := solana.PublicKeyFromBase58(walletAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet address %q: %w", walletAddress, err)
	}

	if result, ok := a.sessions.GetResult(ctx, walletAddress); ok {
		a.tl.Info("✅ 命中会话缓存，跳过扫描", zap.String("wallet", walletAddress))
		return result, nil
	}

	options := a.newScanOptions(opts...)
	monitor.WalletScansStarted.WithLabelValues(options.trigger).Inc()
	startedAt := time.Now()

	if err := a.daos.WalletScanDAO.UpsertScanStarted(ctx, walletAddress); err != nil {
		a.tl.Warn("❌ 刷新扫描元数据失败", zap.String("wallet", walletAddress), zap.Error(err))
	}

	scanCtx := pipeline.NewScanContext(walletAddress, pipeline.Deps{
		Pool:            a.repo.GetSolanaPool(),
		Exec:            a.exec,
		Catalog:         a.catalog,
		Gecko:           a.gecko,
		Binance:         a.binance,
		PriceCache:      a.prices,
		TokenDAO:        a.daos.TokenDAO,
		OnStatus:        a.publishStatus,
		OnMissingTokens: a.recordMissingTokens,
		Logger:          a.tl,
	})

	trades, err := scanCtx.Run(ctx, wallet, options.cutoff)
	if err != nil {
		scanCtx.MarkFailed(err.Error())
		if derr := a.daos.WalletScanDAO.MarkScanFailed(ctx, walletAddress, err.Error()); derr != nil {
			a.tl.Warn("❌ 记录扫描失败状态失败", zap.String("wallet", walletAddress), zap.Error(derr))
		}
		monitor.WalletScansCompleted.WithLabelValues("failed").Inc()
		monitor.WalletScanDuration.Observe(time.Since(startedAt).Seconds())
		return nil, fmt.Errorf("scan wallet %s: %w", walletAddress, err)
	}

	nativeBalance := decimal.Zero
	if pool := a.repo.GetSolanaPool(); pool != nil {
		if bal, berr := solana_client.GetNativeBalance(ctx, pool.Current(), wallet); berr != nil {
			a.tl.Warn("❌ 查询SOL余额失败", zap.String("wallet", walletAddress), zap.Error(berr))
		} else {
			nativeBalance = bal
		}
	}

	result := model.NewAnalysisResult(walletAddress, trades, time.Now().UnixMilli())
	result.NativeBalance = nativeBalance
	a.sessions.SetResult(ctx, walletAddress, result)

	scanCtx.SetStep(model.SCAN_STEP_PERSIST)
	if options.userID != "" {
		// 落库失败不推翻本次扫描，结果仍在会话缓存里
		if inserted, perr := a.StoreAllTrades(ctx, options.userID, trades); perr != nil {
			a.tl.Error("❌ 成交记录落库失败", zap.String("wallet", walletAddress), zap.Error(perr))
		} else {
			a.tl.Info("✅ 成交记录已落库",
				zap.String("wallet", walletAddress),
				zap.Int("inserted", inserted),
				zap.Int("total", len(trades)))
		}
	}
	a.emitTrades(trades)
	a.recordLatest(trades)

	scan := &model.WalletScan{
		WalletAddress: walletAddress,
		LastScanAt:    time.Now().UnixMilli(),
		ScanCompleted: true,
		TradeCount:    result.TradeCount,
		TotalVolume:   result.TotalVolume,
		NativeBalance: nativeBalance,
		UniqueTokens:  pq.StringArray(result.UniqueMints),
	}
	if err := a.daos.WalletScanDAO.MarkScanCompleted(ctx, scan); err != nil {
		a.tl.Warn("❌ 更新扫描完成状态失败", zap.String("wallet", walletAddress), zap.Error(err))
	}

	scanCtx.MarkComplete()
	monitor.WalletScansCompleted.WithLabelValues("ok").Inc()
	monitor.WalletScanDuration.Observe(time.Since(startedAt).Seconds())
	a.tl.Info("✅ 钱包扫描完成",
		zap.String("wallet", walletAddress),
		zap.Int("trades", result.TradeCount),
		zap.Int("tokens", len(result.UniqueMints)),
		zap.Duration("elapsed", time.Since(startedAt)))
	return result, nil
}

func (a *Analyzer) newScanOptions(opts ...ScanOption) scanOptions {
	o := scanOptions{trigger: TRIGGER_DIRECT}
	if days := a.cfg.Scanner.CutoffDays; days > 0 {
		o.cutoff = time.Now().AddDate(0, 0, -days).Unix()
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// GetCachedAnalysisResult 只查会话缓存，未命中返回nil，不触发扫描
func (a *Analyzer) GetCachedAnalysisResult(walletAddress string) *model.AnalysisResult {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if result, ok := a.sessions.GetResult(ctx, walletAddress); ok {
		return result
	}
	return nil
}

// ClearWalletCache 清除单个钱包的会话缓存，下次分析强制重扫
func (a *Analyzer) ClearWalletCache(ctx context.Context, walletAddress string) {
	a.sessions.DeleteWallet(ctx, walletAddress)
}

// ClearAllCaches 清空会话、价格与代币信息三类缓存，数据库内容不受影响
func (a *Analyzer) ClearAllCaches(ctx context.Context) {
	a.sessions.Flush(ctx)
	a.prices.Flush(ctx)
	a.daos.TokenDAO.FlushCache(ctx)
}

// SetWalletTracked 标记或取消跟踪钱包，被跟踪的钱包进入定时重扫名单
func (a *Analyzer) SetWalletTracked(ctx context.Context, walletAddress string, tracked bool) error {
	if _, err := solana.PublicKeyFromBase58(walletAddress); err != nil {
		return fmt.Errorf("invalid wallet address %q: %w", walletAddress, err)
	}
	return a.daos.WalletScanDAO.SetTracked(ctx, walletAddress, tracked)
}

// GetWalletScan 查询钱包的扫描元数据行，从未扫描过时返回(nil, nil)
func (a *Analyzer) GetWalletScan(ctx context.Context, walletAddress string) (*model.WalletScan, error) {
	return a.daos.WalletScanDAO.GetByWallet(ctx, walletAddress)
}

// DAOs 暴露底层DAO集合给定时任务使用
func (a *Analyzer) DAOs() *dao.DAOManager {
	return a.daos
}

// Close 优雅关闭：先关写入器排空积压，再取消写入上下文
func (a *Analyzer) Close() {
	if a.kafkaWriter != nil {
		a.kafkaWriter.Close()
	}
	if a.archiveWriter != nil {
		a.archiveWriter.Close()
	}
	if a.esWriter != nil {
		a.esWriter.Close()
	}
	if a.missingWriter != nil {
		a.missingWriter.Close()
	}
	a.writerCancel()
	a.latestTrades.Close()
}
