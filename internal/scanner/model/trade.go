package model

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	TRADE_KIND_BUY  = "buy"
	TRADE_KIND_SELL = "sell"
)

// TokenChange 一笔交易中观察到的单个代币余额变化
type TokenChange struct {
	Mint         string          `json:"mint"`
	Owner        string          `json:"owner,omitempty"`
	AccountIndex uint16          `json:"account_index"`
	Delta        decimal.Decimal `json:"delta"`
	Decimals     uint8           `json:"decimals"`
}

// TradeRecord 一条已分类的买卖事件
// (signature, wallet_address) 唯一索引是去重的正确性保障，应用层预检查只是优化
type TradeRecord struct {
	ID              int64           `gorm:"primaryKey" json:"id"`
	Signature       string          `gorm:"column:signature;type:varchar(100);not null;uniqueIndex:uidx_signature_wallet,priority:1" json:"signature"`
	WalletAddress   string          `gorm:"column:wallet_address;type:varchar(100);not null;index;uniqueIndex:uidx_signature_wallet,priority:2" json:"wallet_address"`
	UserID          string          `gorm:"column:user_id;type:varchar(100);index" json:"user_id"`
	TradeKind       string          `gorm:"column:trade_kind;type:varchar(10);not null" json:"trade_kind"` // buy, sell
	Mint            string          `gorm:"column:mint;type:varchar(100);not null;index" json:"mint"`
	TokenSymbol     string          `gorm:"column:token_symbol;type:varchar(512)" json:"token_symbol"`
	TokenName       string          `gorm:"column:token_name;type:varchar(512)" json:"token_name"`
	TokenLogo       *string         `gorm:"column:token_logo;type:text" json:"token_logo"`
	TokenDelta      decimal.Decimal `gorm:"column:token_delta;type:decimal(50,20);not null;default:0" json:"token_delta"`
	NativeAmount    decimal.Decimal `gorm:"column:native_amount;type:decimal(50,20);not null;default:0" json:"native_amount"` // SOL净变化，已扣除手续费
	UsdValue        decimal.Decimal `gorm:"column:usd_value;type:decimal(50,20);not null;default:0" json:"usd_value"`
	Fee             decimal.Decimal `gorm:"column:fee;type:decimal(50,20);not null;default:0" json:"fee"`    // SOL
	TransactionTime int64           `gorm:"column:transaction_time;not null;index" json:"transaction_time"` // 毫秒时间戳
	TokenChanges    datatypes.JSON  `gorm:"column:token_changes;type:jsonb" json:"token_changes"`           // 交易内全部代币变化，含被折叠的次要腿
	Starred         bool            `gorm:"column:starred;not null;default:false" json:"starred"`
	Notes           string          `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt       int64           `gorm:"column:created_at;not null" json:"created_at"` // 毫秒时间戳
}

func (t *TradeRecord) TableName() string {
	return "trade_scan.t_trade_record"
}

func NewTradeRecord(
	walletAddress, signature string, blockTimeMs int64, kind string,
	primary TokenChange, nativeDelta, usdValue, fee decimal.Decimal,
	info *TokenInfo, allChanges []TokenChange) *TradeRecord {

	tr := &TradeRecord{
		Signature:       signature,
		WalletAddress:   walletAddress,
		TradeKind:       kind,
		Mint:            primary.Mint,
		TokenDelta:      primary.Delta,
		NativeAmount:    nativeDelta,
		UsdValue:        usdValue,
		Fee:             fee,
		TransactionTime: blockTimeMs,
		CreatedAt:       time.Now().UnixMilli(),
	}
	if info != nil {
		tr.TokenSymbol = info.Symbol
		tr.TokenName = info.Name
		tr.TokenLogo = info.Logo
	}
	if len(allChanges) > 0 {
		jsonData, _ := sonic.Marshal(allChanges)
		tr.TokenChanges = datatypes.JSON(jsonData)
	}
	return tr
}
