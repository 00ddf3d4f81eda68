package pipeline

import (
	"context"
	"fmt"

	"soltrack/internal/scanner/reliability"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// DiscoverAccounts 从根钱包出发广度优先发现所有关联代币账户
// 已访问集合去重，队列耗尽即终止；根钱包查询失败让整次扫描失败，
// 其余单个账户失败记录日志后跳过
func (s *ScanContext) DiscoverAccounts(ctx context.Context, root solana.PublicKey) ([]solana.PublicKey, error) {
	visited := map[solana.PublicKey]struct{}{root: {}}
	queue := []solana.PublicKey{root}
	accounts := make([]solana.PublicKey, 0, 8)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var res *rpc.GetTokenAccountsResult
		err := s.exec.Execute(ctx, "get_token_accounts", func(ctx context.Context) error {
			programID := solana.TokenProgramID
			var ierr error
			res, ierr = s.pool.Current().GetTokenAccountsByOwner(
				ctx, current,
				&rpc.GetTokenAccountsConfig{ProgramId: &programID},
				&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64},
			)
			return ierr
		})
		if err != nil {
			if reliability.IsBreakerOpen(err) {
				return nil, err
			}
			if current.Equals(root) {
				return nil, fmt.Errorf("discover token accounts for wallet %s: %w", root, err)
			}
			s.tl.Warn("❌ 查询代币账户失败，跳过该账户",
				zap.String("account", current.String()), zap.Error(err))
			continue
		}
		if res == nil {
			continue
		}

		for _, acc := range res.Value {
			if _, ok := visited[acc.Pubkey]; ok {
				continue
			}
			visited[acc.Pubkey] = struct{}{}
			queue = append(queue, acc.Pubkey)
			accounts = append(accounts, acc.Pubkey)
		}
	}

	s.tl.Info("✅ 代币账户发现完成",
		zap.String("wallet", root.String()), zap.Int("accounts", len(accounts)))
	return accounts, nil
}
