package moralis

import "strconv"

// SolanaTokenMetadata Solana网关的mint元数据响应
// decimals在返回体里是字符串
type SolanaTokenMetadata struct {
	Mint     string  `json:"mint"`
	Standard string  `json:"standard"`
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Logo     *string `json:"logo"`
	Decimals string  `json:"decimals"`
}

// DecimalsUint8 解析字符串精度，解析失败按0处理
func (m *SolanaTokenMetadata) DecimalsUint8() uint8 {
	d, err := strconv.ParseUint(m.Decimals, 10, 8)
	if err != nil {
		return 0
	}
	return uint8(d)
}
