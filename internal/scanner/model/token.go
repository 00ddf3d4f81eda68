package model

// TokenInfo 代币展示信息
// 目录命中的条目会落库作为后续扫描的三级缓存，占位条目只进会话缓存
type TokenInfo struct {
	Mint      string  `gorm:"column:mint;type:varchar(100);primaryKey" json:"mint"`
	Name      string  `gorm:"column:name;type:varchar(256);not null;default:''" json:"name"`
	Symbol    string  `gorm:"column:symbol;type:varchar(100);not null;default:''" json:"symbol"`
	Logo      *string `gorm:"column:logo;type:varchar(512)" json:"logo"` // 可为null
	Decimals  uint8   `gorm:"column:decimals;not null;default:0" json:"decimals"`
	UpdatedAt int64   `gorm:"column:updated_at;not null;default:0" json:"updated_at"` // 毫秒时间戳
}

func (t *TokenInfo) TableName() string {
	return "trade_scan.t_token_info"
}

// PlaceholderTokenInfo 为目录中不存在的代币合成占位描述
// symbol 为标识符前8位加省略号，logo 为空
func PlaceholderTokenInfo(mint string) *TokenInfo {
	symbol := mint
	if len(symbol) > 8 {
		symbol = symbol[:8]
	}
	return &TokenInfo{
		Mint:   mint,
		Name:   "Unknown Token",
		Symbol: symbol + "...",
		Logo:   nil,
	}
}
