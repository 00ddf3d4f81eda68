package coingecko

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"soltrack/internal/scanner/config"
	"soltrack/pkg/httpclient"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CoinGeckoClient struct {
	baseURL    string
	coinID     string
	httpClient *httpclient.HTTPClient
	logger     *zap.Logger
}

// PricePoint 历史价格序列中的一个点
type PricePoint struct {
	Time  time.Time
	Price decimal.Decimal
}

type marketChartResp struct {
	Prices [][]float64 `json:"prices"`
}

func NewCoinGeckoClient(cfg config.CoinGeckoConfig, logger *zap.Logger) *CoinGeckoClient {
	httpCfg := httpclient.HTTPClientConfig{
		Timeout:   time.Duration(cfg.Timeout) * time.Second,
		RateLimit: cfg.RateLimit,
		XApiKey:   cfg.APIKey,
	}

	httpClient := httpclient.NewHTTPClient(httpCfg, logger)

	coinID := cfg.CoinID
	if coinID == "" {
		coinID = "solana"
	}

	return &CoinGeckoClient{
		baseURL:    cfg.BaseURL,
		coinID:     coinID,
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetNativePriceSeries 拉取原生币兑USD的历史价格序列，近days天，日粒度
// 返回的序列按时间升序，[timestamp_ms, price] 解析为 PricePoint
func (c *CoinGeckoClient) GetNativePriceSeries(ctx context.Context, days int) ([]PricePoint, error) {
	url := fmt.Sprintf("%s/api/v3/coins/%s/market_chart", c.baseURL, c.coinID)
	params := map[string]string{
		"vs_currency": "usd",
		"days":        strconv.Itoa(days),
		"interval":    "daily",
	}

	var out marketChartResp
	if err := c.httpClient.Get(ctx, url, params, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch native price series failed, url: %s, error: %w", url, err)
	}

	points := make([]PricePoint, 0, len(out.Prices))
	for _, pair := range out.Prices {
		if len(pair) < 2 {
			continue
		}
		points = append(points, PricePoint{
			Time:  time.UnixMilli(int64(pair[0])),
			Price: decimal.NewFromFloat(pair[1]),
		})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("native price series empty, url: %s", url)
	}

	return points, nil
}
