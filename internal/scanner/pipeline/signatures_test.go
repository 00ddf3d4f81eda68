package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"soltrack/internal/scanner/reliability"
	"soltrack/pkg/solana_client"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// newRPCServer 极简JSON-RPC假节点，按方法分发，请求id原样回显
func newRPCServer(t *testing.T, handle func(method string, params []json.RawMessage) (interface{}, error)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		result, err := handle(req.Method, req.Params)
		if err != nil {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","error":{"code":-32000,"message":%q},"id":%s}`, err.Error(), req.ID)
			return
		}
		payload, merr := json.Marshal(result)
		if merr != nil {
			t.Errorf("marshal rpc result: %v", merr)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","result":%s,"id":%s}`, payload, req.ID)
	}))
}

func newRPCContext(t *testing.T, endpoint string) *ScanContext {
	t.Helper()
	pool, err := solana_client.NewPool([]string{endpoint}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	breaker := reliability.NewCircuitBreaker("rpc-test", 100, time.Hour, zap.NewNop())
	return NewScanContext(testWallet.String(), Deps{
		Pool:   pool,
		Exec:   reliability.NewExecutor(breaker, zap.NewNop()),
		Logger: zap.NewNop(),
	})
}

// nthSig 生成可区分且非零的签名
func nthSig(n int) solana.Signature {
	var s solana.Signature
	s[0] = byte(n)
	s[1] = byte(n >> 8)
	s[63] = 1
	return s
}

type sigEntry struct {
	Signature string      `json:"signature"`
	Slot      uint64      `json:"slot"`
	Err       interface{} `json:"err"`
	BlockTime int64       `json:"blockTime,omitempty"`
}

type sigOpts struct {
	Limit      int    `json:"limit"`
	Before     string `json:"before"`
	Commitment string `json:"commitment"`
}

// parseSigParams 在server goroutine里执行，只能Errorf不能Fatalf
func parseSigParams(t *testing.T, params []json.RawMessage) sigOpts {
	t.Helper()
	var opts sigOpts
	if len(params) < 2 {
		t.Errorf("getSignaturesForAddress params = %d, want 2", len(params))
		return opts
	}
	if err := json.Unmarshal(params[1], &opts); err != nil {
		t.Errorf("unmarshal signature opts: %v", err)
	}
	return opts
}

func TestCollectAccountSignaturesPagination(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	baseTime := int64(1_750_000_000)

	pageOne := make([]sigEntry, SIGNATURE_PAGE_LIMIT)
	for i := range pageOne {
		pageOne[i] = sigEntry{
			Signature: nthSig(i + 1).String(),
			Slot:      uint64(100_000 - i),
			BlockTime: baseTime - int64(i),
		}
	}
	lastOfPageOne := pageOne[len(pageOne)-1].Signature
	pageTwo := []sigEntry{
		{Signature: nthSig(2001).String(), Slot: 90_000, BlockTime: baseTime - 2001},
		{Signature: nthSig(2002).String(), Slot: 89_999, BlockTime: baseTime - 2002},
		{Signature: nthSig(2003).String(), Slot: 89_998, BlockTime: baseTime - 2003},
	}

	var calls atomic.Int64
	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, error) {
		if method != "getSignaturesForAddress" {
			t.Errorf("unexpected method %q", method)
		}
		calls.Add(1)
		opts := parseSigParams(t, params)
		if opts.Limit != SIGNATURE_PAGE_LIMIT {
			t.Errorf("limit = %d, want %d", opts.Limit, SIGNATURE_PAGE_LIMIT)
		}
		switch opts.Before {
		case "":
			return pageOne, nil
		case lastOfPageOne:
			return pageTwo, nil
		default:
			t.Errorf("unexpected before cursor %q", opts.Before)
			return []sigEntry{}, nil
		}
	})
	defer srv.Close()

	s := newRPCContext(t, srv.URL)
	collected, err := s.collectAccountSignatures(context.Background(), account, 0)
	if err != nil {
		t.Fatalf("collectAccountSignatures: %v", err)
	}
	if len(collected) != SIGNATURE_PAGE_LIMIT+len(pageTwo) {
		t.Errorf("collected = %d, want %d", len(collected), SIGNATURE_PAGE_LIMIT+len(pageTwo))
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("rpc calls = %d, want 2", got)
	}
	if collected[0].Signature != nthSig(1) {
		t.Errorf("first signature = %s, want %s", collected[0].Signature, nthSig(1))
	}
}

func TestCollectAccountSignaturesSkipsFailed(t *testing.T) {
	account := solana.NewWallet().PublicKey()

	page := []sigEntry{
		{Signature: nthSig(1).String(), Slot: 4, BlockTime: 400},
		{Signature: nthSig(2).String(), Slot: 3, BlockTime: 300,
			Err: map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 1}}}},
		{Signature: nthSig(3).String(), Slot: 2, BlockTime: 200},
	}
	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, error) {
		return page, nil
	})
	defer srv.Close()

	s := newRPCContext(t, srv.URL)
	collected, err := s.collectAccountSignatures(context.Background(), account, 0)
	if err != nil {
		t.Fatalf("collectAccountSignatures: %v", err)
	}
	if len(collected) != 2 {
		t.Fatalf("collected = %d, want 2 (failed tx skipped)", len(collected))
	}
	for _, sig := range collected {
		if sig.Signature == nthSig(2) {
			t.Error("on-chain failed transaction was not skipped")
		}
	}
}

func TestCollectAccountSignaturesNilBlockTimeWithCutoff(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	cutoff := int64(1_750_000_000)

	// 第二条没有blockTime（节点未回填），设了cutoff时不能混进扫描窗口
	page := []sigEntry{
		{Signature: nthSig(1).String(), Slot: 4, BlockTime: cutoff + 10},
		{Signature: nthSig(2).String(), Slot: 3},
		{Signature: nthSig(3).String(), Slot: 2, BlockTime: cutoff + 5},
	}
	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, error) {
		return page, nil
	})
	defer srv.Close()

	s := newRPCContext(t, srv.URL)
	collected, err := s.collectAccountSignatures(context.Background(), account, cutoff)
	if err != nil {
		t.Fatalf("collectAccountSignatures: %v", err)
	}
	if len(collected) != 2 {
		t.Fatalf("collected = %d, want 2 (nil blockTime dropped under cutoff)", len(collected))
	}
	for _, sig := range collected {
		if sig.Signature == nthSig(2) {
			t.Error("signature without blockTime leaked into the cutoff window")
		}
	}

	// 无cutoff时不做窗口判定，三条都保留
	collected, err = s.collectAccountSignatures(context.Background(), account, 0)
	if err != nil {
		t.Fatalf("collectAccountSignatures without cutoff: %v", err)
	}
	if len(collected) != 3 {
		t.Errorf("collected = %d, want 3 without cutoff", len(collected))
	}
}

func TestCollectAccountSignaturesStopsAtCutoff(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	cutoff := int64(1_750_000_000)

	// 整页都满，但中途跨过cutoff：停止翻页，不发第二页请求
	page := make([]sigEntry, SIGNATURE_PAGE_LIMIT)
	for i := range page {
		blockTime := cutoff + int64(500-i) // 第501条开始早于cutoff
		page[i] = sigEntry{
			Signature: nthSig(i + 1).String(),
			Slot:      uint64(100_000 - i),
			BlockTime: blockTime,
		}
	}

	var calls atomic.Int64
	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, error) {
		calls.Add(1)
		return page, nil
	})
	defer srv.Close()

	s := newRPCContext(t, srv.URL)
	collected, err := s.collectAccountSignatures(context.Background(), account, cutoff)
	if err != nil {
		t.Fatalf("collectAccountSignatures: %v", err)
	}
	if len(collected) != 501 {
		t.Errorf("collected = %d, want 501 (blockTime >= cutoff)", len(collected))
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("rpc calls = %d, want 1 (past-cutoff stops pagination)", got)
	}
}
