package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const TRADE_EVENT_TYPE = "com.soltrack.scanner.event.TradeClassifiedEvent"

// TradeEvent 推送给下游的成交事件
type TradeEvent struct {
	Event TradeEventDetails `json:"event"`
	Type  string            `json:"type"`
}

type TradeEventDetails struct {
	ID              string          `json:"id"`
	WalletAddress   string          `json:"walletAddress"`
	Signature       string          `json:"signature"`
	TradeKind       string          `json:"tradeKind"`
	Mint            string          `json:"mint"`
	TokenSymbol     string          `json:"tokenSymbol"`
	TokenName       string          `json:"tokenName"`
	TokenDelta      decimal.Decimal `json:"tokenDelta"`
	NativeAmount    decimal.Decimal `json:"nativeAmount"`
	UsdValue        decimal.Decimal `json:"usdValue"`
	Fee             decimal.Decimal `json:"fee"`
	TransactionTime int64           `json:"transactionTime"`
	CreatedAt       int64           `json:"createdAt"`
}

func NewTradeEvent(tr TradeRecord) *TradeEvent {
	return &TradeEvent{
		Event: TradeEventDetails{
			ID:              uuid.New().String(),
			WalletAddress:   tr.WalletAddress,
			Signature:       tr.Signature,
			TradeKind:       tr.TradeKind,
			Mint:            tr.Mint,
			TokenSymbol:     tr.TokenSymbol,
			TokenName:       tr.TokenName,
			TokenDelta:      tr.TokenDelta,
			NativeAmount:    tr.NativeAmount,
			UsdValue:        tr.UsdValue,
			Fee:             tr.Fee,
			TransactionTime: tr.TransactionTime,
			CreatedAt:       tr.CreatedAt,
		},
		Type: TRADE_EVENT_TYPE,
	}
}

// ScanRequest 扫描请求消息，来自请求队列
type ScanRequest struct {
	WalletAddress string `json:"walletAddress"`
	UserID        string `json:"userId,omitempty"`
	Cutoff        int64  `json:"cutoff,omitempty"` // epoch秒，0表示不限制
	RequestedAt   int64  `json:"requestedAt"`
}
