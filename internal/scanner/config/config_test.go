package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testYaml = `
log:
  level: debug
solana_rpc_urls:
  - https://rpc-main.example.com
  - https://rpc-backup.example.com
kafka:
  brokers: localhost:9092
  topic_scan_request: scan.wallet.request
  topic_trade_event: scan.trade.event
  group_id: soltrack-scanner
redis:
  address: localhost:6379
  db: 0
  db_metrics: 1
  db_price: 2
postgres:
  dsn: host=localhost user=postgres dbname=soltrack
archive:
  dsn: ""
elasticsearch:
  addresses:
    - http://localhost:9200
  trades_index_name: soltrack_trades
scanner:
  worker_num: 4
  cutoff_days: 30
  rescan_interval_hours: 6
monitor:
  enable: true
  prometheus_addr: :9091
jupiter:
  base_url: https://token.jup.ag
  rate_limit: 10
  burst: 10
  timeout: 30
coingecko:
  base_url: https://api.coingecko.com
  coin_id: solana
  rate_limit: 2
  timeout: 30
binance:
  enable: true
  symbol: SOLUSDT
moralis:
  enable: true
  gateway_url: https://solana-gateway.moralis.io
  api_key: test-key
  rate_limit: 5
  timeout: 30
`

func TestInitConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "config.scanner.yaml"), []byte(testYaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg := InitConfig()
	t.Logf("cfg redis: %+v", cfg.Redis)
	t.Logf("cfg pg: %+v", cfg.Postgres)
	t.Logf("cfg scanner: %+v", cfg.Scanner)
	t.Logf("cfg jupiter: %+v", cfg.Jupiter)

	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if len(cfg.SolanaRpcUrls) != 2 {
		t.Fatalf("solana rpc urls = %d, want 2", len(cfg.SolanaRpcUrls))
	}
	if cfg.SolanaRpcUrls[1] != "https://rpc-backup.example.com" {
		t.Errorf("backup rpc url = %q", cfg.SolanaRpcUrls[1])
	}
	if cfg.Scanner.WorkerNum != 4 {
		t.Errorf("worker num = %d, want 4", cfg.Scanner.WorkerNum)
	}
	if cfg.Jupiter.RateLimit != 10 {
		t.Errorf("jupiter rate limit = %v, want 10", cfg.Jupiter.RateLimit)
	}
	if cfg.Kafka.TopicTradeEvent != "scan.trade.event" {
		t.Errorf("trade event topic = %q", cfg.Kafka.TopicTradeEvent)
	}
	if !cfg.Binance.Enable {
		t.Errorf("binance fallback should be enabled")
	}
	if !cfg.Moralis.Enable || cfg.Moralis.GatewayURL == "" {
		t.Errorf("moralis fallback misconfigured: %+v", cfg.Moralis)
	}
}
