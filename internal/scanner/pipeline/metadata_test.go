package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"soltrack/internal/scanner/config"
	"soltrack/internal/scanner/model"
	"soltrack/internal/scanner/reliability"
	"soltrack/pkg/jupiter"

	"go.uber.org/zap"
)

type fakeTokenDAO struct {
	infos   map[string]*model.TokenInfo
	upserts [][]*model.TokenInfo
}

func (f *fakeTokenDAO) GetTokenInfo(_ context.Context, mint string) (*model.TokenInfo, error) {
	return f.infos[mint], nil
}

func (f *fakeTokenDAO) UpsertTokenInfos(_ context.Context, infos []*model.TokenInfo) error {
	f.upserts = append(f.upserts, infos)
	return nil
}

func (f *fakeTokenDAO) ClearCache(context.Context, string) {}

func (f *fakeTokenDAO) FlushCache(context.Context) {}

func newMetadataContext(t *testing.T, baseURL string, tokenDAO *fakeTokenDAO, onMissing func([]string)) *ScanContext {
	t.Helper()
	breaker := reliability.NewCircuitBreaker("metadata-test", 100, time.Hour, zap.NewNop())
	d := Deps{
		Exec: reliability.NewExecutor(breaker, zap.NewNop()),
		Catalog: jupiter.NewJupiterClient(config.JupiterConfig{
			BaseURL:   baseURL,
			RateLimit: 1000,
			Burst:     100,
			Timeout:   5,
		}, zap.NewNop()),
		OnMissingTokens: onMissing,
		Logger:          zap.NewNop(),
	}
	if tokenDAO != nil {
		d.TokenDAO = tokenDAO
	}
	return NewScanContext(testWallet.String(), d)
}

func TestLoadMetadataResolvesAndFallsBack(t *testing.T) {
	mintA, mintB := testMintA.String(), testMintB.String()

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"address":%q,"chainId":101,"decimals":5,"name":"Bonk","symbol":"BONK","logoURI":"https://example.com/bonk.png","tags":["verified"]}]`, mintA)
	}))
	defer srv.Close()

	var missing []string
	tokenDAO := &fakeTokenDAO{infos: map[string]*model.TokenInfo{}}
	s := newMetadataContext(t, srv.URL, tokenDAO, func(mints []string) { missing = mints })

	s.LoadTokenMetadata(context.Background(), []string{mintA, mintB})

	infoA := s.tokenInfos[mintA]
	if infoA == nil || infoA.Symbol != "BONK" || infoA.Name != "Bonk" {
		t.Fatalf("resolved info = %+v, want BONK/Bonk", infoA)
	}
	if infoA.Logo == nil || *infoA.Logo != "https://example.com/bonk.png" {
		t.Errorf("resolved logo = %v, want catalog URI", infoA.Logo)
	}
	if infoA.Decimals != 5 {
		t.Errorf("resolved decimals = %d, want 5", infoA.Decimals)
	}

	infoB := s.tokenInfos[mintB]
	if infoB == nil {
		t.Fatal("absent token got no placeholder")
	}
	if want := mintB[:8] + "..."; infoB.Symbol != want {
		t.Errorf("placeholder symbol = %q, want %q", infoB.Symbol, want)
	}
	if infoB.Logo != nil {
		t.Errorf("placeholder logo = %v, want nil", *infoB.Logo)
	}

	if len(missing) != 1 || missing[0] != mintB {
		t.Errorf("missing sink = %v, want [%s]", missing, mintB)
	}
	if len(tokenDAO.upserts) != 1 || len(tokenDAO.upserts[0]) != 1 || tokenDAO.upserts[0][0].Mint != mintA {
		t.Errorf("upserted = %+v, want one batch with %s", tokenDAO.upserts, mintA)
	}
	if got := s.Status().UniqueTokens; got != 2 {
		t.Errorf("UniqueTokens = %d, want 2", got)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("catalog requests = %d, want 1", got)
	}
}

func TestLoadMetadataFailedBatchUsesPlaceholders(t *testing.T) {
	mintA, mintB := testMintA.String(), testMintB.String()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	var missing []string
	s := newMetadataContext(t, srv.URL, nil, func(mints []string) { missing = mints })

	s.LoadTokenMetadata(context.Background(), []string{mintA, mintB})

	for _, mint := range []string{mintA, mintB} {
		info := s.tokenInfos[mint]
		if info == nil {
			t.Fatalf("mint %s got no placeholder after batch failure", mint)
		}
		if want := mint[:8] + "..."; info.Symbol != want {
			t.Errorf("symbol = %q, want %q", info.Symbol, want)
		}
	}
	if len(missing) != 2 {
		t.Errorf("missing sink = %v, want both mints", missing)
	}
}

func TestLoadMetadataCachedTokensSkipCatalog(t *testing.T) {
	mintA := testMintA.String()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected catalog request when all tokens cached")
	}))
	defer srv.Close()

	tokenDAO := &fakeTokenDAO{infos: map[string]*model.TokenInfo{
		mintA: {Mint: mintA, Name: "Bonk", Symbol: "BONK", Decimals: 5},
	}}
	s := newMetadataContext(t, srv.URL, tokenDAO, nil)

	s.LoadTokenMetadata(context.Background(), []string{mintA})

	if info := s.tokenInfos[mintA]; info == nil || info.Symbol != "BONK" {
		t.Errorf("cached info = %+v, want BONK", info)
	}
	if len(tokenDAO.upserts) != 0 {
		t.Errorf("upserts = %d, want 0 for fully cached load", len(tokenDAO.upserts))
	}
}

func TestLoadMetadataEmptyNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected catalog request for empty mint list")
	}))
	defer srv.Close()

	s := newMetadataContext(t, srv.URL, nil, nil)
	s.LoadTokenMetadata(context.Background(), nil)

	if got := s.Status().UniqueTokens; got != 0 {
		t.Errorf("UniqueTokens = %d, want 0", got)
	}
}
