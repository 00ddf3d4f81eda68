package solana_client

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Pool 管理主 RPC 节点与备用节点
// 上游持续失败时调用 Rotate 轮换到下一个节点，轮换是环形的
type Pool struct {
	mu        sync.Mutex
	endpoints []string
	clients   []*rpc.Client
	current   int
	tl        *zap.Logger
}

func NewPool(endpoints []string, tl *zap.Logger) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("solana rpc: no endpoints configured")
	}
	clients := make([]*rpc.Client, 0, len(endpoints))
	for _, ep := range endpoints {
		clients = append(clients, rpc.New(ep))
	}
	return &Pool{
		endpoints: endpoints,
		clients:   clients,
		tl:        tl,
	}, nil
}

// Current 返回当前节点的客户端
func (p *Pool) Current() *rpc.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clients[p.current]
}

// Endpoint 返回当前节点地址
func (p *Pool) Endpoint() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoints[p.current]
}

// Rotate 轮换到下一个备用节点并返回新的客户端
func (p *Pool) Rotate() *rpc.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.clients) == 1 {
		return p.clients[p.current]
	}
	from := p.endpoints[p.current]
	p.current = (p.current + 1) % len(p.clients)
	p.tl.Warn("⌛ rotating solana rpc endpoint",
		zap.String("from", from),
		zap.String("to", p.endpoints[p.current]),
	)
	return p.clients[p.current]
}

// Size 节点数量
func (p *Pool) Size() int {
	return len(p.endpoints)
}

// GetNativeBalance 查询地址当前 SOL 余额（lamports 转 SOL）
func GetNativeBalance(ctx context.Context, client *rpc.Client, address solana.PublicKey) (decimal.Decimal, error) {
	out, err := client.GetBalance(ctx, address, rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, err
	}
	lamports := decimal.NewFromInt(int64(out.Value))
	return lamports.Div(decimal.NewFromInt(int64(solana.LAMPORTS_PER_SOL))), nil
}
