package moralis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"soltrack/internal/scanner/config"
	"soltrack/pkg/httpclient"

	"go.uber.org/zap"
)

type MoralisClient struct {
	gatewayURL string
	httpClient *httpclient.HTTPClient
	logger     *zap.Logger
}

func NewMoralisClient(cfg config.MoralisConfig, logger *zap.Logger) *MoralisClient {
	// 创建HTTP客户端配置
	httpCfg := httpclient.HTTPClientConfig{
		Timeout:   time.Duration(cfg.Timeout) * time.Second,
		RateLimit: cfg.RateLimit,
		XApiKey:   cfg.APIKey,
	}

	// 创建HTTP客户端
	httpClient := httpclient.NewHTTPClient(httpCfg, logger)

	return &MoralisClient{
		gatewayURL: cfg.GatewayURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetSolanaTokenMetadata 查询单个mint的链上元数据
// 网关返回404说明Moralis也不认识这个mint，返回(nil, nil)让调用方保留占位信息
func (m *MoralisClient) GetSolanaTokenMetadata(ctx context.Context, mint string) (*SolanaTokenMetadata, error) {
	url := fmt.Sprintf("%s/token/mainnet/%s/metadata", m.gatewayURL, mint)

	var meta SolanaTokenMetadata
	if err := m.httpClient.Get(ctx, url, nil, nil, &meta); err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch solana token metadata failed, mint: %s, error: %w", mint, err)
	}

	return &meta, nil
}
