package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func tokenAccountsResult(pubkeys ...solana.PublicKey) map[string]interface{} {
	value := make([]map[string]interface{}, 0, len(pubkeys))
	for _, pk := range pubkeys {
		value = append(value, map[string]interface{}{
			"pubkey": pk.String(),
			"account": map[string]interface{}{
				"lamports":   2_039_280,
				"owner":      solana.TokenProgramID.String(),
				"executable": false,
				"rentEpoch":  361,
			},
		})
	}
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": 100},
		"value":   value,
	}
}

func TestDiscoverAccountsBFS(t *testing.T) {
	root := solana.NewWallet().PublicKey()
	acc1 := solana.NewWallet().PublicKey()
	acc2 := solana.NewWallet().PublicKey()

	var calls atomic.Int64
	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, error) {
		calls.Add(1)
		if method != "getTokenAccountsByOwner" {
			t.Errorf("unexpected method %q", method)
			return tokenAccountsResult(), nil
		}
		var owner string
		if err := json.Unmarshal(params[0], &owner); err != nil {
			t.Errorf("unmarshal owner param: %v", err)
			return tokenAccountsResult(), nil
		}
		if owner == root.String() {
			return tokenAccountsResult(acc1, acc2), nil
		}
		return tokenAccountsResult(), nil
	})
	defer srv.Close()

	s := newRPCContext(t, srv.URL)
	accounts, err := s.DiscoverAccounts(context.Background(), root)
	if err != nil {
		t.Fatalf("DiscoverAccounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(accounts))
	}
	if !accounts[0].Equals(acc1) || !accounts[1].Equals(acc2) {
		t.Errorf("accounts = %v, want [%s %s]", accounts, acc1, acc2)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("rpc calls = %d, want 3 (root plus two leaves)", got)
	}
}

func TestDiscoverAccountsRootFailurePropagates(t *testing.T) {
	root := solana.NewWallet().PublicKey()

	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, error) {
		return nil, errors.New("node melted")
	})
	defer srv.Close()

	s := newRPCContext(t, srv.URL)
	if _, err := s.DiscoverAccounts(context.Background(), root); err == nil {
		t.Fatal("expected error when root account query fails")
	}
}

func TestDiscoverAccountsLeafFailureSkipped(t *testing.T) {
	root := solana.NewWallet().PublicKey()
	acc1 := solana.NewWallet().PublicKey()

	var calls atomic.Int64
	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, error) {
		calls.Add(1)
		var owner string
		if err := json.Unmarshal(params[0], &owner); err != nil {
			return nil, err
		}
		if owner == root.String() {
			return tokenAccountsResult(acc1), nil
		}
		return nil, errors.New("leaf unavailable")
	})
	defer srv.Close()

	s := newRPCContext(t, srv.URL)
	accounts, err := s.DiscoverAccounts(context.Background(), root)
	if err != nil {
		t.Fatalf("DiscoverAccounts: %v", err)
	}
	if len(accounts) != 1 || !accounts[0].Equals(acc1) {
		t.Errorf("accounts = %v, want [%s]", accounts, acc1)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("rpc calls = %d, want 2", got)
	}
}
