package pipeline

import (
	"context"
	"testing"
	"time"

	"soltrack/internal/scanner/cache"
	"soltrack/internal/scanner/model"

	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	testWallet = solana.NewWallet().PublicKey()
	testPayer  = solana.NewWallet().PublicKey()
	testMintA  = solana.NewWallet().PublicKey()
	testMintB  = solana.NewWallet().PublicKey()

	testBlockTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	testPriceUSD  = decimal.NewFromInt(100)
)

// newClassifyContext 预置当日价格，分类路径完全不触网
func newClassifyContext(t *testing.T) *ScanContext {
	t.Helper()
	s := NewScanContext(testWallet.String(), Deps{
		PriceCache: cache.NewPriceCache(nil, zap.NewNop()),
		Logger:     zap.NewNop(),
	})
	s.priceCache.SetDay(context.Background(), testBlockTime, testPriceUSD)
	return s
}

func tokenBalance(idx uint16, mint, owner solana.PublicKey, amount string, decimals uint8) rpc.TokenBalance {
	return rpc.TokenBalance{
		AccountIndex:  idx,
		Mint:          mint,
		Owner:         &owner,
		UiTokenAmount: &rpc.UiTokenAmount{Amount: amount, Decimals: decimals},
	}
}

// testTx keys[0]是手续费支付方
func testTx(meta *rpc.TransactionMeta, keys ...solana.PublicKey) *FetchedTx {
	return &FetchedTx{
		Signature:   solana.Signature{1},
		Slot:        100,
		BlockTime:   testBlockTime,
		Meta:        meta,
		AccountKeys: keys,
	}
}

func TestClassifyBuyWhenNativeDecreases(t *testing.T) {
	s := newClassifyContext(t)

	// 钱包在下标1，SOL从5减到3：买入，手续费由下标0的支付方承担
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{10_000_000_000, 5_000_000_000},
		PostBalances: []uint64{9_999_995_000, 3_000_000_000},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "0", 6),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "12000000", 6),
		},
	}
	trade, err := s.ClassifyTransaction(context.Background(), testWallet, testTx(meta, testPayer, testWallet))
	if err != nil {
		t.Fatalf("ClassifyTransaction: %v", err)
	}
	if trade == nil {
		t.Fatal("expected a trade, got nil")
	}
	if trade.TradeKind != model.TRADE_KIND_BUY {
		t.Errorf("TradeKind = %q, want %q", trade.TradeKind, model.TRADE_KIND_BUY)
	}
	if trade.Mint != testMintA.String() {
		t.Errorf("Mint = %q, want %q", trade.Mint, testMintA)
	}
	if !trade.TokenDelta.Equal(decimal.NewFromInt(12)) {
		t.Errorf("TokenDelta = %s, want 12", trade.TokenDelta)
	}
	if !trade.NativeAmount.Equal(decimal.NewFromInt(-2)) {
		t.Errorf("NativeAmount = %s, want -2", trade.NativeAmount)
	}
	if !trade.UsdValue.Equal(decimal.NewFromInt(200)) {
		t.Errorf("UsdValue = %s, want 200", trade.UsdValue)
	}
	if !trade.Fee.Equal(decimal.RequireFromString("0.000005")) {
		t.Errorf("Fee = %s, want 0.000005", trade.Fee)
	}
	if trade.TransactionTime != testBlockTime.UnixMilli() {
		t.Errorf("TransactionTime = %d, want %d", trade.TransactionTime, testBlockTime.UnixMilli())
	}
	if got := s.Status().TradesFound; got != 1 {
		t.Errorf("TradesFound = %d, want 1", got)
	}
}

func TestClassifySellWhenNativeIncreases(t *testing.T) {
	s := newClassifyContext(t)

	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{10_000_000_000, 3_000_000_000},
		PostBalances: []uint64{9_999_995_000, 4_500_000_000},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "12000000", 6),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "0", 6),
		},
	}
	trade, err := s.ClassifyTransaction(context.Background(), testWallet, testTx(meta, testPayer, testWallet))
	if err != nil {
		t.Fatalf("ClassifyTransaction: %v", err)
	}
	if trade == nil {
		t.Fatal("expected a trade, got nil")
	}
	if trade.TradeKind != model.TRADE_KIND_SELL {
		t.Errorf("TradeKind = %q, want %q", trade.TradeKind, model.TRADE_KIND_SELL)
	}
	if !trade.TokenDelta.Equal(decimal.NewFromInt(-12)) {
		t.Errorf("TokenDelta = %s, want -12", trade.TokenDelta)
	}
	if !trade.NativeAmount.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("NativeAmount = %s, want 1.5", trade.NativeAmount)
	}
	if !trade.UsdValue.Equal(decimal.NewFromInt(150)) {
		t.Errorf("UsdValue = %s, want 150", trade.UsdValue)
	}
}

func TestClassifyFeePayerNetsOutFee(t *testing.T) {
	s := newClassifyContext(t)

	// 钱包自己付手续费且只付了手续费：净移动为零，不构成交易
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{10_000_000_000},
		PostBalances: []uint64{9_999_995_000},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, testMintA, testWallet, "0", 6),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, testMintA, testWallet, "12000000", 6),
		},
	}
	trade, err := s.ClassifyTransaction(context.Background(), testWallet, testTx(meta, testWallet))
	if err != nil {
		t.Fatalf("ClassifyTransaction: %v", err)
	}
	if trade != nil {
		t.Fatalf("fee-only movement classified as %s trade", trade.TradeKind)
	}

	// 手续费之外还花了2 SOL：加回手续费后净移动正好-2
	meta.PostBalances = []uint64{7_999_995_000}
	trade, err = s.ClassifyTransaction(context.Background(), testWallet, testTx(meta, testWallet))
	if err != nil {
		t.Fatalf("ClassifyTransaction: %v", err)
	}
	if trade == nil {
		t.Fatal("expected a trade, got nil")
	}
	if !trade.NativeAmount.Equal(decimal.NewFromInt(-2)) {
		t.Errorf("NativeAmount = %s, want -2", trade.NativeAmount)
	}
	if trade.TradeKind != model.TRADE_KIND_BUY {
		t.Errorf("TradeKind = %q, want %q", trade.TradeKind, model.TRADE_KIND_BUY)
	}
}

func TestClassifyWrapOnlyReturnsNil(t *testing.T) {
	s := newClassifyContext(t)

	// 只有包装币自身的余额变化：wrap/unwrap不是交易
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{10_000_000_000, 5_000_000_000},
		PostBalances: []uint64{9_999_995_000, 3_000_000_000},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, solana.WrappedSol, testWallet, "0", 9),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, solana.WrappedSol, testWallet, "2000000000", 9),
		},
	}
	trade, err := s.ClassifyTransaction(context.Background(), testWallet, testTx(meta, testPayer, testWallet))
	if err != nil {
		t.Fatalf("ClassifyTransaction: %v", err)
	}
	if trade != nil {
		t.Fatalf("wrap-only transaction classified as %s trade", trade.TradeKind)
	}
}

func TestClassifyDustOnlyReturnsNil(t *testing.T) {
	s := newClassifyContext(t)

	// 唯一的代币变化0.0005，低于尘埃阈值
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{10_000_000_000, 5_000_000_000},
		PostBalances: []uint64{9_999_995_000, 3_000_000_000},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "0", 6),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "500", 6),
		},
	}
	trade, err := s.ClassifyTransaction(context.Background(), testWallet, testTx(meta, testPayer, testWallet))
	if err != nil {
		t.Fatalf("ClassifyTransaction: %v", err)
	}
	if trade != nil {
		t.Fatal("dust-only transaction classified as a trade")
	}
}

func TestClassifyNativeBelowThresholdReturnsNil(t *testing.T) {
	s := newClassifyContext(t)

	// 代币动了但SOL只动了0.00005，低于最小净移动
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{10_000_000_000, 5_000_000_000},
		PostBalances: []uint64{9_999_995_000, 4_999_950_000},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "0", 6),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "12000000", 6),
		},
	}
	trade, err := s.ClassifyTransaction(context.Background(), testWallet, testTx(meta, testPayer, testWallet))
	if err != nil {
		t.Fatalf("ClassifyTransaction: %v", err)
	}
	if trade != nil {
		t.Fatal("insufficient native movement classified as a trade")
	}
}

func TestClassifyMissingSnapshotReturnsNil(t *testing.T) {
	s := newClassifyContext(t)

	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{10_000_000_000, 5_000_000_000},
		PostBalances: []uint64{9_999_995_000, 3_000_000_000},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "12000000", 6),
		},
	}
	trade, err := s.ClassifyTransaction(context.Background(), testWallet, testTx(meta, testPayer, testWallet))
	if err != nil {
		t.Fatalf("ClassifyTransaction: %v", err)
	}
	if trade != nil {
		t.Fatal("transaction without pre snapshot classified as a trade")
	}
}

func TestClassifyPrimaryIsLargestAbsDelta(t *testing.T) {
	s := newClassifyContext(t)

	// 两条腿：A变化-5，B变化+12，主变化取绝对值更大的B，次要腿保留在TokenChanges里
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{10_000_000_000, 5_000_000_000},
		PostBalances: []uint64{9_999_995_000, 3_000_000_000},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "5000000", 6),
			tokenBalance(3, testMintB, testWallet, "0", 6),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "0", 6),
			tokenBalance(3, testMintB, testWallet, "12000000", 6),
		},
	}
	trade, err := s.ClassifyTransaction(context.Background(), testWallet, testTx(meta, testPayer, testWallet))
	if err != nil {
		t.Fatalf("ClassifyTransaction: %v", err)
	}
	if trade == nil {
		t.Fatal("expected a trade, got nil")
	}
	if trade.Mint != testMintB.String() {
		t.Errorf("primary mint = %q, want %q", trade.Mint, testMintB)
	}
	if !trade.TokenDelta.Equal(decimal.NewFromInt(12)) {
		t.Errorf("TokenDelta = %s, want 12", trade.TokenDelta)
	}

	var all []model.TokenChange
	if err := sonic.Unmarshal(trade.TokenChanges, &all); err != nil {
		t.Fatalf("unmarshal TokenChanges: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("TokenChanges has %d entries, want 2", len(all))
	}
	if all[0].Mint != testMintA.String() || all[1].Mint != testMintB.String() {
		t.Errorf("TokenChanges order = [%s, %s], want [%s, %s]", all[0].Mint, all[1].Mint, testMintA, testMintB)
	}
}

func TestClassifyUnknownTokenUsesPlaceholder(t *testing.T) {
	s := newClassifyContext(t)

	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{10_000_000_000, 5_000_000_000},
		PostBalances: []uint64{9_999_995_000, 3_000_000_000},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "0", 6),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "12000000", 6),
		},
	}
	trade, err := s.ClassifyTransaction(context.Background(), testWallet, testTx(meta, testPayer, testWallet))
	if err != nil {
		t.Fatalf("ClassifyTransaction: %v", err)
	}
	if trade == nil {
		t.Fatal("expected a trade, got nil")
	}
	wantSymbol := testMintA.String()[:8] + "..."
	if trade.TokenSymbol != wantSymbol {
		t.Errorf("TokenSymbol = %q, want %q", trade.TokenSymbol, wantSymbol)
	}
	if trade.TokenName != "Unknown Token" {
		t.Errorf("TokenName = %q, want %q", trade.TokenName, "Unknown Token")
	}
	if trade.TokenLogo != nil {
		t.Errorf("TokenLogo = %v, want nil", *trade.TokenLogo)
	}
}

func TestClassifyResolvedTokenUsesLoadedInfo(t *testing.T) {
	s := newClassifyContext(t)
	s.tokenInfos[testMintA.String()] = &model.TokenInfo{
		Mint: testMintA.String(), Name: "Bonk", Symbol: "BONK", Decimals: 5,
	}

	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{10_000_000_000, 5_000_000_000},
		PostBalances: []uint64{9_999_995_000, 3_000_000_000},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "0", 5),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(2, testMintA, testWallet, "1200000", 5),
		},
	}
	trade, err := s.ClassifyTransaction(context.Background(), testWallet, testTx(meta, testPayer, testWallet))
	if err != nil {
		t.Fatalf("ClassifyTransaction: %v", err)
	}
	if trade == nil {
		t.Fatal("expected a trade, got nil")
	}
	if trade.TokenSymbol != "BONK" || trade.TokenName != "Bonk" {
		t.Errorf("token display = %q/%q, want BONK/Bonk", trade.TokenSymbol, trade.TokenName)
	}
}

func TestQualifyingChangesFilterProgramOwned(t *testing.T) {
	// 系统程序和Token程序名下的账户是池子或中转，不代表钱包持仓
	meta := &rpc.TransactionMeta{
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, testMintA, solana.TokenProgramID, "0", 6),
			tokenBalance(2, testMintA, solana.SystemProgramID, "0", 6),
			tokenBalance(3, testMintB, testWallet, "0", 6),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, testMintA, solana.TokenProgramID, "99000000", 6),
			tokenBalance(2, testMintA, solana.SystemProgramID, "88000000", 6),
			tokenBalance(3, testMintB, testWallet, "7000000", 6),
		},
	}
	changes := qualifyingTokenChanges(meta)
	if len(changes) != 1 {
		t.Fatalf("qualifying changes = %d, want 1", len(changes))
	}
	if changes[0].Mint != testMintB.String() {
		t.Errorf("kept mint = %q, want %q", changes[0].Mint, testMintB)
	}
	if !changes[0].Delta.Equal(decimal.NewFromInt(7)) {
		t.Errorf("delta = %s, want 7", changes[0].Delta)
	}
}

func TestHasTokenBalanceChange(t *testing.T) {
	cases := []struct {
		name string
		meta *rpc.TransactionMeta
		want bool
	}{
		{"no balances", &rpc.TransactionMeta{}, false},
		{
			"unchanged amounts",
			&rpc.TransactionMeta{
				PreTokenBalances:  []rpc.TokenBalance{tokenBalance(1, testMintA, testWallet, "100", 6)},
				PostTokenBalances: []rpc.TokenBalance{tokenBalance(1, testMintA, testWallet, "100", 6)},
			},
			false,
		},
		{
			"amount changed",
			&rpc.TransactionMeta{
				PreTokenBalances:  []rpc.TokenBalance{tokenBalance(1, testMintA, testWallet, "100", 6)},
				PostTokenBalances: []rpc.TokenBalance{tokenBalance(1, testMintA, testWallet, "250", 6)},
			},
			true,
		},
		{
			"account closed",
			&rpc.TransactionMeta{
				PreTokenBalances: []rpc.TokenBalance{tokenBalance(1, testMintA, testWallet, "100", 6)},
			},
			true,
		},
		{
			"account opened",
			&rpc.TransactionMeta{
				PostTokenBalances: []rpc.TokenBalance{tokenBalance(1, testMintA, testWallet, "100", 6)},
			},
			true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hasTokenBalanceChange(tc.meta); got != tc.want {
				t.Errorf("hasTokenBalanceChange = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWalletNativeDelta(t *testing.T) {
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{10_000_000_000, 5_000_000_000},
		PostBalances: []uint64{9_999_995_000, 3_000_000_000},
	}

	// 钱包不在账户列表里
	if _, ok := walletNativeDelta(meta, []solana.PublicKey{testPayer}, testWallet); ok {
		t.Error("expected ok=false for wallet missing from account keys")
	}

	// 账户下标超出余额数组
	short := &rpc.TransactionMeta{PreBalances: []uint64{1}, PostBalances: []uint64{1}}
	if _, ok := walletNativeDelta(short, []solana.PublicKey{testPayer, testWallet}, testWallet); ok {
		t.Error("expected ok=false when balances shorter than key index")
	}

	delta, ok := walletNativeDelta(meta, []solana.PublicKey{testPayer, testWallet}, testWallet)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if !delta.Equal(decimal.NewFromInt(-2)) {
		t.Errorf("delta = %s, want -2", delta)
	}
}

func TestNativeMoveThresholdBoundary(t *testing.T) {
	// 正好0.0001算达到门槛
	meta := &rpc.TransactionMeta{
		PreBalances:  []uint64{1_000_000_000, 5_000_000_000},
		PostBalances: []uint64{1_000_000_000, 5_000_100_000},
	}
	keys := []solana.PublicKey{testPayer, testWallet}
	if !nativeMoveExceedsThreshold(meta, keys, testWallet) {
		t.Error("exact threshold move should qualify")
	}

	meta.PostBalances = []uint64{1_000_000_000, 5_000_099_999}
	if nativeMoveExceedsThreshold(meta, keys, testWallet) {
		t.Error("sub-threshold move should not qualify")
	}
}

func TestCollectMints(t *testing.T) {
	tx1 := testTx(&rpc.TransactionMeta{
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, testMintA, testWallet, "0", 6),
			tokenBalance(2, solana.WrappedSol, testWallet, "0", 9),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(3, testMintB, testWallet, "1", 6),
		},
	}, testWallet)
	tx2 := testTx(&rpc.TransactionMeta{
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, testMintA, testWallet, "5", 6),
		},
	}, testWallet)
	noMeta := &FetchedTx{Signature: solana.Signature{9}}

	mints := collectMints([]*FetchedTx{tx1, tx2, noMeta})
	if len(mints) != 2 {
		t.Fatalf("mints = %v, want 2 entries", mints)
	}
	if mints[0] != testMintA.String() || mints[1] != testMintB.String() {
		t.Errorf("mints = %v, want [%s %s]", mints, testMintA, testMintB)
	}
}
