package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"soltrack/internal/scanner/config"
	"soltrack/internal/scanner/repository"
	"soltrack/internal/scanner/service"
	"soltrack/pkg/logger"

	"go.uber.org/zap"
)

// 一次性扫描指定钱包，不依赖Kafka

func main() {
	wallet := flag.String("wallet", "", "wallet address to scan (required)")
	userID := flag.String("user", "", "attribute stored trades to this user id")
	cutoffDays := flag.Int("cutoff-days", 0, "only scan trades newer than N days, 0 uses config default")
	track := flag.Bool("track", false, "mark the wallet as tracked for periodic rescans")
	flag.Parse()

	if *wallet == "" {
		fmt.Fprintln(os.Stderr, "usage: scan -wallet <address> [-user <id>] [-cutoff-days <n>] [-track]")
		os.Exit(1)
	}

	startTime := time.Now()
	// 初始化配置文件
	cfg := config.InitConfig()

	// 初始化 trace provider
	logger.InitTrace("soltrack", "scan")
	// 启动主 span
	ctx, span := logger.StartSpan(context.Background(), "main", "main")
	defer span.End()

	// 创建 root logger 并注入 trace 上下文
	rootLogger := logger.NewLogger("scan")
	logger.SetLogLevel(cfg.Log.Level)
	tl := logger.WithTrace(ctx, rootLogger)

	// 初始化 repository
	repo := repository.New(cfg, tl)
	defer repo.Close()

	analyzer := service.NewAnalyzer(cfg, tl, repo)
	defer analyzer.Close()

	opts := []service.ScanOption{service.WithTrigger(service.TRIGGER_CLI)}
	if *userID != "" {
		opts = append(opts, service.WithUserID(*userID))
	}
	if *cutoffDays > 0 {
		opts = append(opts, service.WithCutoff(time.Now().AddDate(0, 0, -*cutoffDays).Unix()))
	}

	tl.Info("Starting one-shot wallet scan...", zap.String("wallet", *wallet))
	result, err := analyzer.AnalyzeWalletTrades(ctx, *wallet, opts...)
	if err != nil {
		tl.Error("Failed to scan wallet", zap.Error(err))
		os.Exit(1)
	}

	if *track {
		if err := analyzer.SetWalletTracked(ctx, *wallet, true); err != nil {
			tl.Warn("Failed to mark wallet as tracked", zap.Error(err))
		}
	}

	tl.Info("Scan completed successfully",
		zap.Int("trade_count", result.TradeCount),
		zap.String("total_volume_usd", result.TotalVolume.String()),
		zap.Int("unique_tokens", len(result.UniqueMints)),
		zap.String("native_balance_sol", result.NativeBalance.String()),
		zap.Duration("taken_time", time.Since(startTime)))
}
