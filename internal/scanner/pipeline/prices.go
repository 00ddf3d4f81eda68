package pipeline

import (
	"context"
	"errors"
	"time"

	"soltrack/internal/scanner/cache"
	"soltrack/pkg/coingecko"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	PRICE_SERIES_MIN_DAYS = 2   // 行情源对过短窗口返回稀疏数据
	PRICE_SERIES_MAX_DAYS = 365 // 免费档位的最大回看窗口
)

// fallbackPriceUSD 行情源全部失败时的保底价格
// 保底值同样写入缓存，避免同一天内反复打失败的上游
var fallbackPriceUSD = decimal.NewFromInt(150)

var errNoPriceSource = errors.New("price series source not configured")

// ResolveNativePriceUSD 解析指定时刻的原生币美元价格，按UTC日期粒度缓存
// 主行情源失败降级备用源，再失败使用保底价格，任何情况下都有返回值
func (s *ScanContext) ResolveNativePriceUSD(ctx context.Context, at time.Time) decimal.Decimal {
	if s.priceCache != nil {
		if price, ok := s.priceCache.GetDay(ctx, at); ok {
			return price
		}
	}

	price, err := s.fetchSeriesPrice(ctx, at)
	if err != nil && s.binance != nil {
		s.tl.Warn("⌛ 主行情源失败，降级备用行情源",
			zap.String("day", cache.DayKey(at)), zap.Error(err))
		price, err = s.binance.GetDailyClose(ctx, at)
	}
	if err != nil {
		s.tl.Warn("❌ 历史价格解析失败，使用保底价格",
			zap.String("day", cache.DayKey(at)),
			zap.String("fallback", fallbackPriceUSD.String()),
			zap.Error(err))
		price = fallbackPriceUSD
	}

	if s.priceCache != nil {
		s.priceCache.SetDay(ctx, at, price)
	}
	return price
}

// fetchSeriesPrice 拉取覆盖目标日期的价格序列，取时间距离最近的点
func (s *ScanContext) fetchSeriesPrice(ctx context.Context, at time.Time) (decimal.Decimal, error) {
	if s.gecko == nil {
		return decimal.Zero, errNoPriceSource
	}
	target := time.Date(at.UTC().Year(), at.UTC().Month(), at.UTC().Day(), 0, 0, 0, 0, time.UTC)

	days := int(time.Since(target).Hours()/24) + 2
	if days < PRICE_SERIES_MIN_DAYS {
		days = PRICE_SERIES_MIN_DAYS
	}
	if days > PRICE_SERIES_MAX_DAYS {
		days = PRICE_SERIES_MAX_DAYS
	}

	var points []coingecko.PricePoint
	err := s.exec.Execute(ctx, "get_price_series", func(ctx context.Context) error {
		var ferr error
		points, ferr = s.gecko.GetNativePriceSeries(ctx, days)
		return ferr
	})
	if err != nil {
		return decimal.Zero, err
	}
	if len(points) == 0 {
		return decimal.Zero, errors.New("price series empty")
	}

	best := points[0]
	bestDist := absDuration(best.Time.Sub(target))
	for _, p := range points[1:] {
		if d := absDuration(p.Time.Sub(target)); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best.Price, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
