package pipeline

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"soltrack/internal/scanner/model"
	"soltrack/internal/scanner/monitor"
	"soltrack/pkg/utils"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

var (
	dustThreshold       = decimal.RequireFromString("0.001")  // 最小代币变化量
	nativeMoveThreshold = decimal.RequireFromString("0.0001") // 最小SOL净移动量

	wrappedNativeMint  = solana.WrappedSol.String()
	systemProgramOwner = solana.SystemProgramID.String()
	tokenProgramOwner  = solana.TokenProgramID.String()
)

// ClassifyTransaction 判定一笔交易是否构成买卖，返回(nil, nil)表示不构成
//
// 代币余额变化里，包装币mint与系统/Token程序名下的账户属于wrap中转噪声，
// 低于尘埃阈值的变化不具经济意义，全部剔除后取绝对值最大者为主变化。
// 钱包原生币净变化（扣除手续费后）决定方向：减少为买入，增加为卖出。
func (s *ScanContext) ClassifyTransaction(ctx context.Context, wallet solana.PublicKey, tx *FetchedTx) (*model.TradeRecord, error) {
	if tx == nil || tx.Meta == nil {
		return nil, nil
	}
	meta := tx.Meta

	// 没有完整的前后余额快照无从比较
	if meta.PreTokenBalances == nil || meta.PostTokenBalances == nil {
		return nil, nil
	}

	changes := qualifyingTokenChanges(meta)
	if len(changes) == 0 {
		return nil, nil
	}

	primary := changes[0]
	for _, ch := range changes[1:] {
		if ch.Delta.Abs().GreaterThan(primary.Delta.Abs()) {
			primary = ch
		}
	}

	nativeDelta, ok := walletNativeDelta(meta, tx.AccountKeys, wallet)
	if !ok || nativeDelta.Abs().LessThan(nativeMoveThreshold) {
		return nil, nil
	}

	kind := model.TRADE_KIND_SELL
	if nativeDelta.IsNegative() {
		kind = model.TRADE_KIND_BUY
	}

	price := s.ResolveNativePriceUSD(ctx, tx.BlockTime)
	usdValue := nativeDelta.Abs().Mul(price)

	info := s.tokenInfos[primary.Mint]
	if info == nil {
		info = model.PlaceholderTokenInfo(primary.Mint)
	}
	fee := utils.AdjustDecimals(new(big.Int).SetUint64(meta.Fee), 9)

	trade := model.NewTradeRecord(
		wallet.String(), tx.Signature.String(), tx.BlockTime.UnixMilli(),
		kind, primary, nativeDelta, usdValue, fee, info, changes,
	)

	s.status.TradesFound++
	s.pushStatus()
	monitor.TradesClassified.WithLabelValues(kind).Inc()
	return trade, nil
}

// qualifyingTokenChanges 计算交易内每个(账户下标, mint)的代币余额变化并过滤噪声
// 结果按账户下标升序，保证同一笔交易的输出顺序稳定
func qualifyingTokenChanges(meta *rpc.TransactionMeta) []model.TokenChange {
	type balancePair struct {
		pre, post decimal.Decimal
		mint      string
		owner     string
		decimals  uint8
		index     uint16
	}
	pairs := make(map[string]*balancePair)

	record := func(tb rpc.TokenBalance, isPost bool) {
		key := fmt.Sprintf("%d:%s", tb.AccountIndex, tb.Mint)
		p, ok := pairs[key]
		if !ok {
			p = &balancePair{mint: tb.Mint.String(), index: tb.AccountIndex}
			if tb.Owner != nil {
				p.owner = tb.Owner.String()
			}
			if tb.UiTokenAmount != nil {
				p.decimals = tb.UiTokenAmount.Decimals
			}
			pairs[key] = p
		}
		amount := decimal.Zero
		if tb.UiTokenAmount != nil {
			amount = utils.ShiftDecimals(tb.UiTokenAmount.Amount, tb.UiTokenAmount.Decimals)
		}
		if isPost {
			p.post = amount
		} else {
			p.pre = amount
		}
	}
	for _, tb := range meta.PreTokenBalances {
		record(tb, false)
	}
	for _, tb := range meta.PostTokenBalances {
		record(tb, true)
	}

	changes := make([]model.TokenChange, 0, len(pairs))
	for _, p := range pairs {
		if p.mint == wrappedNativeMint {
			continue
		}
		if p.owner == systemProgramOwner || p.owner == tokenProgramOwner {
			continue
		}
		delta := p.post.Sub(p.pre)
		if delta.Abs().LessThan(dustThreshold) {
			continue
		}
		changes = append(changes, model.TokenChange{
			Mint:         p.mint,
			Owner:        p.owner,
			AccountIndex: p.index,
			Delta:        delta,
			Decimals:     p.decimals,
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].AccountIndex < changes[j].AccountIndex
	})
	return changes
}

// hasTokenBalanceChange 交易内是否存在任何代币余额变化（过滤前的原始口径）
func hasTokenBalanceChange(meta *rpc.TransactionMeta) bool {
	if meta == nil {
		return false
	}
	if len(meta.PreTokenBalances) == 0 && len(meta.PostTokenBalances) == 0 {
		return false
	}

	pre := make(map[string]string, len(meta.PreTokenBalances))
	for _, tb := range meta.PreTokenBalances {
		if tb.UiTokenAmount != nil {
			pre[fmt.Sprintf("%d:%s", tb.AccountIndex, tb.Mint)] = tb.UiTokenAmount.Amount
		}
	}
	seen := make(map[string]struct{}, len(meta.PostTokenBalances))
	for _, tb := range meta.PostTokenBalances {
		key := fmt.Sprintf("%d:%s", tb.AccountIndex, tb.Mint)
		seen[key] = struct{}{}
		amount := ""
		if tb.UiTokenAmount != nil {
			amount = tb.UiTokenAmount.Amount
		}
		if prev, ok := pre[key]; !ok || prev != amount {
			return true
		}
	}
	// 出现在pre却不在post的账户（被关闭）同样算变化
	for key := range pre {
		if _, ok := seen[key]; !ok {
			return true
		}
	}
	return false
}

// nativeMoveExceedsThreshold 钱包原生币净移动是否达到交易判定门槛
func nativeMoveExceedsThreshold(meta *rpc.TransactionMeta, keys []solana.PublicKey, wallet solana.PublicKey) bool {
	delta, ok := walletNativeDelta(meta, keys, wallet)
	return ok && delta.Abs().GreaterThanOrEqual(nativeMoveThreshold)
}

// walletNativeDelta 钱包账户的SOL净变化
// 钱包是手续费支付方（首账户）时把手续费加回，得到交易本身的净移动
func walletNativeDelta(meta *rpc.TransactionMeta, keys []solana.PublicKey, wallet solana.PublicKey) (decimal.Decimal, bool) {
	idx := -1
	for i, k := range keys {
		if k.Equals(wallet) {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(meta.PreBalances) || idx >= len(meta.PostBalances) {
		return decimal.Zero, false
	}

	deltaLamports := int64(meta.PostBalances[idx]) - int64(meta.PreBalances[idx])
	if idx == 0 {
		deltaLamports += int64(meta.Fee)
	}
	return utils.AdjustDecimals(big.NewInt(deltaLamports), 9), true
}

// collectMints 汇总所有交易余额快照里出现过的代币，保持首次出现顺序
func collectMints(txs []*FetchedTx) []string {
	seen := make(map[string]struct{})
	mints := make([]string, 0, 16)

	add := func(balances []rpc.TokenBalance) {
		for _, tb := range balances {
			mint := tb.Mint.String()
			if mint == wrappedNativeMint {
				continue
			}
			if _, ok := seen[mint]; ok {
				continue
			}
			seen[mint] = struct{}{}
			mints = append(mints, mint)
		}
	}
	for _, tx := range txs {
		if tx.Meta == nil {
			continue
		}
		add(tx.Meta.PreTokenBalances)
		add(tx.Meta.PostTokenBalances)
	}
	return mints
}
