package binanceprice

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Client 备用行情源：日线收盘价
// 主行情源失败时由价格解析器降级使用
type Client struct {
	api    *binance.Client
	symbol string
	logger *zap.Logger
}

func NewClient(symbol string, logger *zap.Logger) *Client {
	if symbol == "" {
		symbol = "SOLUSDT"
	}
	// 行情接口无需鉴权
	return &Client{
		api:    binance.NewClient("", ""),
		symbol: symbol,
		logger: logger,
	}
}

// GetDailyClose 查询指定日期（UTC自然日）的日线收盘价
func (c *Client) GetDailyClose(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	klines, err := c.api.NewKlinesService().
		Symbol(c.symbol).
		Interval("1d").
		StartTime(dayStart.UnixMilli()).
		EndTime(dayEnd.UnixMilli() - 1).
		Limit(1).
		Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch daily kline failed, symbol: %s, error: %w", c.symbol, err)
	}
	if len(klines) == 0 {
		return decimal.Zero, fmt.Errorf("no daily kline for %s on %s", c.symbol, dayStart.Format("2006-01-02"))
	}

	closePrice, err := decimal.NewFromString(klines[0].Close)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse kline close %q failed: %w", klines[0].Close, err)
	}
	c.logger.Debug("daily close resolved from fallback source",
		zap.String("symbol", c.symbol),
		zap.String("day", dayStart.Format("2006-01-02")),
		zap.String("close", closePrice.String()),
	)
	return closePrice, nil
}
