package utils

import "fmt"

func SessionResultKey(walletAddress string) string {
	return fmt.Sprintf("trade_scan:session:%s", walletAddress)
}

func TokenInfoKey(mint string) string {
	return fmt.Sprintf("trade_scan:token_info:%s", mint)
}

func PriceDayKey(day string) string {
	return fmt.Sprintf("trade_scan:price:SOL_USD:%s", day)
}

func WalletScanKey(walletAddress string) string {
	return fmt.Sprintf("trade_scan:wallet:%s", walletAddress)
}

func LatestTradesKey(walletAddress string) string {
	return fmt.Sprintf("trade_scan:monitor:latest_trades:%s", walletAddress)
}

func MissingTokenInfoKey() string {
	return "trade_scan:missing_tokeninfo:list"
}
