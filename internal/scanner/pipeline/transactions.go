package pipeline

import (
	"context"
	"errors"
	"time"

	"soltrack/internal/scanner/monitor"
	"soltrack/internal/scanner/reliability"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// FetchedTx 抓取并解码后的链上交易
// AccountKeys 为消息账户表加上地址查找表载入的账户，与余额数组下标对齐
type FetchedTx struct {
	Signature   solana.Signature
	Slot        uint64
	BlockTime   time.Time
	Meta        *rpc.TransactionMeta
	AccountKeys []solana.PublicKey
}

// FetchTransaction 拉取完整交易体，返回(nil, nil)表示交易不可用、应跳过
// base64主编码遇到节点内部错误时降级json编码再试一次；
// 免费节点的长期存储查询超时按交易不可用处理，不让单笔交易拖垮整次扫描
func (s *ScanContext) FetchTransaction(ctx context.Context, sig solana.Signature) (*FetchedTx, error) {
	res, err := s.getTransaction(ctx, sig, solana.EncodingBase64)
	if err != nil && reliability.IsRPCInternalError(err) {
		s.tl.Debug("节点内部错误，降级json编码重试", zap.String("signature", sig.String()))
		res, err = s.getTransaction(ctx, sig, solana.EncodingJSON)
	}
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			monitor.TransactionsFetched.WithLabelValues("not_found").Inc()
			return nil, nil
		}
		if reliability.IsLongTermStorageError(err) {
			monitor.TransactionsFetched.WithLabelValues("storage_timeout").Inc()
			s.tl.Warn("⌛ 节点历史存储查询超时，跳过该交易", zap.String("signature", sig.String()))
			return nil, nil
		}
		monitor.TransactionsFetched.WithLabelValues("error").Inc()
		return nil, err
	}

	if res == nil || res.Meta == nil || res.Transaction == nil {
		monitor.TransactionsFetched.WithLabelValues("not_found").Inc()
		return nil, nil
	}

	parsedTx, perr := res.Transaction.GetTransaction()
	if perr != nil || parsedTx == nil {
		monitor.TransactionsFetched.WithLabelValues("decode_error").Inc()
		s.tl.Warn("❌ 交易体解码失败，跳过",
			zap.String("signature", sig.String()), zap.Error(perr))
		return nil, nil
	}

	keys := make([]solana.PublicKey, 0,
		len(parsedTx.Message.AccountKeys)+len(res.Meta.LoadedAddresses.Writable)+len(res.Meta.LoadedAddresses.ReadOnly))
	keys = append(keys, parsedTx.Message.AccountKeys...)
	keys = append(keys, res.Meta.LoadedAddresses.Writable...)
	keys = append(keys, res.Meta.LoadedAddresses.ReadOnly...)

	blockTime := time.Now()
	if res.BlockTime != nil {
		blockTime = res.BlockTime.Time()
	}

	monitor.TransactionsFetched.WithLabelValues("ok").Inc()
	return &FetchedTx{
		Signature:   sig,
		Slot:        res.Slot,
		BlockTime:   blockTime,
		Meta:        res.Meta,
		AccountKeys: keys,
	}, nil
}

func (s *ScanContext) getTransaction(ctx context.Context, sig solana.Signature, encoding solana.EncodingType) (*rpc.GetTransactionResult, error) {
	maxVersion := uint64(0)
	var out *rpc.GetTransactionResult
	err := s.exec.Execute(ctx, "get_transaction", func(ctx context.Context) error {
		var ierr error
		out, ierr = s.pool.Current().GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       encoding,
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		return ierr
	})
	return out, err
}
