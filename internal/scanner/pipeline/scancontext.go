package pipeline

import (
	"context"
	"sort"

	"soltrack/internal/scanner/cache"
	"soltrack/internal/scanner/dao"
	"soltrack/internal/scanner/model"
	"soltrack/internal/scanner/reliability"
	"soltrack/pkg/binanceprice"
	"soltrack/pkg/coingecko"
	"soltrack/pkg/jupiter"
	"soltrack/pkg/solana_client"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// ScanContext 一次钱包扫描的依赖与过程状态
// 每次扫描显式构造，扫描之间不共享可变状态，便于隔离测试
// 熔断器与重试执行器从外部注入，所有扫描共享同一份上游配额
type ScanContext struct {
	pool       *solana_client.Pool
	exec       *reliability.Executor
	catalog    *jupiter.JupiterClient
	gecko      *coingecko.CoinGeckoClient
	binance    *binanceprice.Client
	priceCache *cache.PriceCache
	tokenDAO   dao.TokenDAO

	tokenInfos map[string]*model.TokenInfo
	status     model.ScanStatus
	onStatus   func(model.ScanStatus)
	onMissing  func(mints []string)

	tl *zap.Logger
}

// Deps 扫描流水线的外部依赖
// Binance、TokenDAO、OnStatus、OnMissingTokens 均可为空
type Deps struct {
	Pool            *solana_client.Pool
	Exec            *reliability.Executor
	Catalog         *jupiter.JupiterClient
	Gecko           *coingecko.CoinGeckoClient
	Binance         *binanceprice.Client
	PriceCache      *cache.PriceCache
	TokenDAO        dao.TokenDAO
	OnStatus        func(model.ScanStatus)
	OnMissingTokens func(mints []string)
	Logger          *zap.Logger
}

func NewScanContext(walletAddress string, d Deps) *ScanContext {
	tl := d.Logger
	if tl == nil {
		tl = zap.NewNop()
	}
	return &ScanContext{
		pool:       d.Pool,
		exec:       d.Exec,
		catalog:    d.Catalog,
		gecko:      d.Gecko,
		binance:    d.Binance,
		priceCache: d.PriceCache,
		tokenDAO:   d.TokenDAO,
		tokenInfos: make(map[string]*model.TokenInfo),
		status:     model.ScanStatus{WalletAddress: walletAddress},
		onStatus:   d.OnStatus,
		onMissing:  d.OnMissingTokens,
		tl:         tl,
	}
}

// Run 按序执行完整流水线：发现账户 -> 收集签名 -> 拉取交易 -> 解析代币 -> 分类
// 返回按交易时间倒序的成交记录；单项失败跳过，整体性失败（熔断打开、根账户不可用）向上传播
func (s *ScanContext) Run(ctx context.Context, wallet solana.PublicKey, cutoff int64) ([]*model.TradeRecord, error) {
	s.SetStep(model.SCAN_STEP_DISCOVER)
	accounts, err := s.DiscoverAccounts(ctx, wallet)
	if err != nil {
		return nil, err
	}

	s.SetStep(model.SCAN_STEP_COLLECT)
	candidates, err := s.CollectSignatures(ctx, wallet, accounts, cutoff)
	if err != nil {
		return nil, err
	}

	s.SetStep(model.SCAN_STEP_FETCH)
	txs := make([]*FetchedTx, 0, len(candidates))
	for _, cand := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tx := cand.Tx
		if tx == nil {
			tx, err = s.FetchTransaction(ctx, cand.Signature)
			if err != nil {
				if reliability.IsBreakerOpen(err) {
					return nil, err
				}
				s.tl.Warn("❌ 拉取交易失败，跳过",
					zap.String("signature", cand.Signature.String()), zap.Error(err))
				s.bumpProcessed()
				continue
			}
		}
		s.bumpProcessed()
		if tx == nil {
			continue
		}
		txs = append(txs, tx)
	}

	s.SetStep(model.SCAN_STEP_METADATA)
	s.LoadTokenMetadata(ctx, collectMints(txs))

	s.SetStep(model.SCAN_STEP_CLASSIFY)
	trades := make([]*model.TradeRecord, 0, len(txs))
	for _, tx := range txs {
		trade, cerr := s.ClassifyTransaction(ctx, wallet, tx)
		if cerr != nil {
			s.tl.Warn("❌ 交易分类失败，跳过",
				zap.String("signature", tx.Signature.String()), zap.Error(cerr))
			continue
		}
		if trade != nil {
			trades = append(trades, trade)
		}
	}

	sort.Slice(trades, func(i, j int) bool {
		return trades[i].TransactionTime > trades[j].TransactionTime
	})
	return trades, nil
}

// Status 当前进度快照
func (s *ScanContext) Status() model.ScanStatus {
	return s.status
}

// SetStep 更新当前步骤并推送给观察方
func (s *ScanContext) SetStep(step string) {
	s.status.CurrentStep = step
	s.pushStatus()
}

// MarkComplete 扫描成功收尾
func (s *ScanContext) MarkComplete() {
	s.status.CurrentStep = model.SCAN_STEP_DONE
	s.status.IsComplete = true
	s.pushStatus()
}

// MarkFailed 扫描失败收尾，reason进入步骤描述供界面展示
func (s *ScanContext) MarkFailed(reason string) {
	s.status.CurrentStep = "Scan failed: " + reason
	s.status.Failed = true
	s.status.IsComplete = true
	s.pushStatus()
}

func (s *ScanContext) bumpProcessed() {
	s.status.ProcessedSignatures++
	s.pushStatus()
}

func (s *ScanContext) pushStatus() {
	if s.onStatus != nil {
		s.onStatus(s.status)
	}
}
