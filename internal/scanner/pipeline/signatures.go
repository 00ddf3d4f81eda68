package pipeline

import (
	"context"
	"time"

	"soltrack/internal/scanner/monitor"
	"soltrack/internal/scanner/reliability"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const (
	SIGNATURE_PAGE_LIMIT = 1000
	SIGNATURE_PAGE_DELAY = 200 * time.Millisecond // 翻页间隔，避免触发节点限流
)

// TxCandidate 待分类的候选交易
// 非根账户的候选在预过滤时已抓取完整交易体，后续阶段直接复用
type TxCandidate struct {
	Signature solana.Signature
	Tx        *FetchedTx
}

// CollectSignatures 汇总根钱包与所有关联账户的候选签名，跨账户按签名去重
// 根钱包的签名全部保留；关联账户的签名先过预过滤，
// 只留下既有代币余额变化又有原生币实际移动的交易
func (s *ScanContext) CollectSignatures(ctx context.Context, root solana.PublicKey, accounts []solana.PublicKey, cutoff int64) ([]TxCandidate, error) {
	seen := make(map[solana.Signature]struct{})
	candidates := make([]TxCandidate, 0, 128)

	rootSigs, err := s.collectAccountSignatures(ctx, root, cutoff)
	if err != nil {
		return nil, err
	}
	for _, sig := range rootSigs {
		if _, ok := seen[sig.Signature]; ok {
			continue
		}
		seen[sig.Signature] = struct{}{}
		candidates = append(candidates, TxCandidate{Signature: sig.Signature})
	}

	for _, account := range accounts {
		sigs, err := s.collectAccountSignatures(ctx, account, cutoff)
		if err != nil {
			if reliability.IsBreakerOpen(err) {
				return nil, err
			}
			s.tl.Warn("❌ 拉取账户签名失败，跳过该账户",
				zap.String("account", account.String()), zap.Error(err))
			continue
		}

		for _, sig := range sigs {
			if _, ok := seen[sig.Signature]; ok {
				continue
			}

			tx, keep, err := s.prefilterCandidate(ctx, root, sig.Signature)
			if err != nil {
				if reliability.IsBreakerOpen(err) {
					return nil, err
				}
				s.tl.Warn("❌ 候选交易预过滤失败，跳过",
					zap.String("signature", sig.Signature.String()), zap.Error(err))
				continue
			}
			if !keep {
				continue
			}
			seen[sig.Signature] = struct{}{}
			candidates = append(candidates, TxCandidate{Signature: sig.Signature, Tx: tx})
		}
	}

	s.status.TotalSignatures = len(candidates)
	s.pushStatus()
	monitor.SignaturesCollected.Add(float64(len(candidates)))
	s.tl.Info("✅ 签名收集完成",
		zap.String("wallet", root.String()),
		zap.Int("accounts", len(accounts)+1),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// collectAccountSignatures 分页拉取单个账户的签名
// 每页至多1000条，用上一页最旧的签名作为下一页的排他上界；
// 页内出现早于cutoff的签名或页未满时停止
func (s *ScanContext) collectAccountSignatures(ctx context.Context, account solana.PublicKey, cutoff int64) ([]*rpc.TransactionSignature, error) {
	limit := SIGNATURE_PAGE_LIMIT
	collected := make([]*rpc.TransactionSignature, 0, 64)
	var before solana.Signature

	for {
		opts := &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentConfirmed,
		}
		if !before.IsZero() {
			opts.Before = before
		}

		var page []*rpc.TransactionSignature
		err := s.exec.Execute(ctx, "get_signatures_for_address", func(ctx context.Context) error {
			var ierr error
			page, ierr = s.pool.Current().GetSignaturesForAddressWithOpts(ctx, account, opts)
			return ierr
		})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		pastCutoff := false
		for _, sig := range page {
			if sig.Err != nil {
				continue // 链上执行失败的交易不参与分类
			}
			if cutoff > 0 {
				if sig.BlockTime == nil {
					continue // 节点没回填区块时间，无法判定是否在窗口内，按窗口外处理
				}
				if int64(*sig.BlockTime) < cutoff {
					pastCutoff = true
					break
				}
			}
			collected = append(collected, sig)
		}

		if pastCutoff || len(page) < SIGNATURE_PAGE_LIMIT {
			break
		}
		before = page[len(page)-1].Signature

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(SIGNATURE_PAGE_DELAY):
		}
	}
	return collected, nil
}

// prefilterCandidate 非根账户候选的预过滤
// 纯转账、空投之类没有原生币对价的交易在这里挡掉，不进入分类
func (s *ScanContext) prefilterCandidate(ctx context.Context, wallet solana.PublicKey, sig solana.Signature) (*FetchedTx, bool, error) {
	tx, err := s.FetchTransaction(ctx, sig)
	if err != nil {
		return nil, false, err
	}
	if tx == nil {
		return nil, false, nil // 交易不可用，按不合格处理
	}
	if !hasTokenBalanceChange(tx.Meta) {
		return nil, false, nil
	}
	if !nativeMoveExceedsThreshold(tx.Meta, tx.AccountKeys, wallet) {
		return nil, false, nil
	}
	return tx, true, nil
}
