package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"soltrack/internal/scanner/cache"
	"soltrack/internal/scanner/config"
	"soltrack/internal/scanner/reliability"
	"soltrack/pkg/coingecko"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// newPriceContext 行情源指向本地假服务，熔断阈值留足余量
func newPriceContext(t *testing.T, baseURL string) *ScanContext {
	t.Helper()
	breaker := reliability.NewCircuitBreaker("price-test", 100, time.Hour, zap.NewNop())
	return NewScanContext(testWallet.String(), Deps{
		Exec: reliability.NewExecutor(breaker, zap.NewNop()),
		Gecko: coingecko.NewCoinGeckoClient(config.CoinGeckoConfig{
			BaseURL:   baseURL,
			CoinID:    "solana",
			RateLimit: 1000,
			Timeout:   5,
		}, zap.NewNop()),
		PriceCache: cache.NewPriceCache(nil, zap.NewNop()),
		Logger:     zap.NewNop(),
	})
}

func TestResolvePriceFallbackCachedOnFailure(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	s := newPriceContext(t, srv.URL)
	ctx := context.Background()

	price := s.ResolveNativePriceUSD(ctx, testBlockTime)
	if !price.Equal(decimal.NewFromInt(150)) {
		t.Errorf("price = %s, want fallback 150", price)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("requests after first resolve = %d, want 1", got)
	}

	// 保底价已按日期缓存，同一天内不再打上游
	price = s.ResolveNativePriceUSD(ctx, testBlockTime.Add(3*time.Hour))
	if !price.Equal(decimal.NewFromInt(150)) {
		t.Errorf("second price = %s, want cached fallback 150", price)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("requests after cached resolve = %d, want 1", got)
	}
}

func TestResolvePriceNearestPoint(t *testing.T) {
	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"prices":[[%d,90],[%d,42],[%d,77]]}`,
			day.Add(-12*time.Hour).UnixMilli(),
			day.Add(10*time.Hour).UnixMilli(),
			day.Add(24*time.Hour+30*time.Minute).UnixMilli(),
		)
	}))
	defer srv.Close()

	s := newPriceContext(t, srv.URL)
	ctx := context.Background()

	price := s.ResolveNativePriceUSD(ctx, testBlockTime)
	if !price.Equal(decimal.NewFromInt(42)) {
		t.Errorf("price = %s, want nearest point 42", price)
	}

	// 解析结果按日期缓存
	s.ResolveNativePriceUSD(ctx, testBlockTime.Add(time.Hour))
	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestResolvePriceCacheHitSkipsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected upstream request on cache hit")
	}))
	defer srv.Close()

	s := newPriceContext(t, srv.URL)
	ctx := context.Background()
	seeded := decimal.RequireFromString("123.45")
	s.priceCache.SetDay(ctx, testBlockTime, seeded)

	price := s.ResolveNativePriceUSD(ctx, testBlockTime)
	if !price.Equal(seeded) {
		t.Errorf("price = %s, want seeded %s", price, seeded)
	}
}

func TestResolvePriceNoSourcesUsesFallback(t *testing.T) {
	s := NewScanContext(testWallet.String(), Deps{
		PriceCache: cache.NewPriceCache(nil, zap.NewNop()),
		Logger:     zap.NewNop(),
	})
	price := s.ResolveNativePriceUSD(context.Background(), testBlockTime)
	if !price.Equal(decimal.NewFromInt(150)) {
		t.Errorf("price = %s, want fallback 150", price)
	}
}
