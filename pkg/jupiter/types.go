package jupiter

// CatalogToken 可交易代币目录中的一条记录
type CatalogToken struct {
	Address  string   `json:"address"`
	ChainID  int      `json:"chainId"`
	Decimals int      `json:"decimals"`
	Name     string   `json:"name"`
	Symbol   string   `json:"symbol"`
	LogoURI  *string  `json:"logoURI"` // 可为null
	Tags     []string `json:"tags"`
}
