package jupiter

import (
	"context"
	"fmt"
	"time"

	"soltrack/internal/scanner/config"
	"soltrack/pkg/httpclient"

	"go.uber.org/zap"
)

type JupiterClient struct {
	baseURL    string
	httpClient *httpclient.HTTPClient
	logger     *zap.Logger
}

func NewJupiterClient(cfg config.JupiterConfig, logger *zap.Logger) *JupiterClient {
	httpCfg := httpclient.HTTPClientConfig{
		Timeout:   time.Duration(cfg.Timeout) * time.Second,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	}

	httpClient := httpclient.NewHTTPClient(httpCfg, logger)

	return &JupiterClient{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetTokenCatalog 拉取全量可交易代币目录，调用方按需筛选
// 重试与熔断由上层统一的可靠性包装负责，这里只发一次请求
func (j *JupiterClient) GetTokenCatalog(ctx context.Context) ([]CatalogToken, error) {
	catalog := []CatalogToken{}
	url := fmt.Sprintf("%s/strict", j.baseURL)
	if err := j.httpClient.Get(ctx, url, nil, nil, &catalog); err != nil {
		return nil, fmt.Errorf("fetch token catalog failed, url: %s, error: %w", url, err)
	}

	return catalog, nil
}
