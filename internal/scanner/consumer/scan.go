package consumer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"soltrack/internal/scanner/config"
	"soltrack/internal/scanner/model"
	"soltrack/internal/scanner/monitor"
	"soltrack/internal/scanner/service"
	"soltrack/pkg/utils"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const SCAN_REQUEST_BUFFER_SIZE = 256

// ScanRequestConsumer 消费扫描请求并调度给worker执行
// 同一钱包按地址hash固定落在同一个worker，钱包内扫描天然串行
type ScanRequestConsumer struct {
	*Consumer                          // 组合通用 Consumer
	id         string                  // 消费者ID
	workerSize int                     // worker数量
	buffers    []chan model.ScanRequest // 消息队列
	analyzer   *service.Analyzer
}

// NewScanRequestConsumer 创建 ScanRequestConsumer 实例
func NewScanRequestConsumer(conf config.Config, logger *zap.Logger, analyzer *service.Analyzer) *ScanRequestConsumer {
	newConsumer := NewConsumer(conf.Kafka, logger, conf.Kafka.TopicScanRequest)

	workerSize := conf.Scanner.WorkerNum
	if workerSize <= 0 {
		workerSize = 4
	}
	buffers := make([]chan model.ScanRequest, workerSize)
	for i := 0; i < workerSize; i++ {
		buffers[i] = make(chan model.ScanRequest, SCAN_REQUEST_BUFFER_SIZE)
	}

	return &ScanRequestConsumer{
		id:         "scan_request_consumer",
		workerSize: workerSize,
		Consumer:   newConsumer,
		buffers:    buffers,
		analyzer:   analyzer,
	}
}

// Run 启动扫描请求消费者
func (sc *ScanRequestConsumer) Run(ctx context.Context) {
	for i := 0; i < sc.workerSize; i++ {
		idx := i
		go func() {
			workerID := strconv.Itoa(idx)
			for {
				select {
				case req, ok := <-sc.buffers[idx]:
					if !ok {
						sc.logger.Warn("❌ buffer is closed", zap.String("consumerID", sc.id), zap.Int("idx", idx))
						return
					}
					startTime := time.Now()
					sc.handleScanRequest(ctx, req)

					// 统计消息处理次数与耗时
					elapsed := time.Since(startTime).Seconds()
					monitor.KafkaWorkerMessagesProcessed.WithLabelValues(workerID).Inc()
					monitor.KafkaWorkerProcessDuration.WithLabelValues(workerID).Observe(elapsed)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	sc.Consumer.Start(ctx, sc)
}

// HandleMessage 实现 MessageHandler 接口
func (sc *ScanRequestConsumer) HandleMessage(msg kafka.Message) {
	monitor.KafkaMessagesReceived.WithLabelValues("scan_request").Inc()

	var req model.ScanRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		sc.logger.Warn("❌ JSON Parse Error", zap.String("consumerID", sc.id), zap.Error(err), zap.String("raw", string(msg.Value)))
		return
	}

	if req.WalletAddress == "" {
		return
	}

	// 过滤掉积压过久的请求，结果早已无人消费
	if req.RequestedAt > 0 && time.Since(time.UnixMilli(req.RequestedAt)) > 24*time.Hour {
		return
	}

	sc.dispatch(req)
}

func (sc *ScanRequestConsumer) ID() string {
	return sc.id
}

// Stop 停止扫描请求消费者
func (sc *ScanRequestConsumer) Stop() error {
	// 先停止 Kafka 消费
	if err := sc.Consumer.Stop(); err != nil {
		return err
	}

	// 关闭所有 buffer channels
	for i := 0; i < sc.workerSize; i++ {
		close(sc.buffers[i])
	}

	return nil
}

func (sc *ScanRequestConsumer) handleScanRequest(ctx context.Context, req model.ScanRequest) {
	opts := []service.ScanOption{service.WithTrigger(service.TRIGGER_KAFKA)}
	if req.UserID != "" {
		opts = append(opts, service.WithUserID(req.UserID))
	}
	if req.Cutoff > 0 {
		cutoff := req.Cutoff
		// 上游偶尔发毫秒时间戳，统一归到秒
		if !utils.IsUnixSeconds(cutoff) {
			cutoff /= 1000
		}
		opts = append(opts, service.WithCutoff(cutoff))
	}

	if _, err := sc.analyzer.AnalyzeWalletTrades(ctx, req.WalletAddress, opts...); err != nil {
		sc.logger.Warn("❌ 扫描请求处理失败",
			zap.String("consumerID", sc.id),
			zap.String("wallet", req.WalletAddress),
			zap.Error(err))
	}
}

// dispatch 按钱包地址hash分桶，保证同一钱包不会被并发扫描
func (sc *ScanRequestConsumer) dispatch(req model.ScanRequest) {
	idx := utils.GetHashBucket(req.WalletAddress, uint32(sc.workerSize))

	// 检测 buffer 是否接近满载，触发短暂休眠
	if len(sc.buffers[idx]) > cap(sc.buffers[idx])*8/10 {
		time.Sleep(100 * time.Millisecond)
	}

	// 发送到通道
	select {
	case sc.buffers[idx] <- req:
		monitor.KafkaWorkerMessagesDispatched.WithLabelValues(strconv.Itoa(int(idx))).Inc()
	default:
		sc.logger.Warn("❌ buffers is full", zap.String("consumerID", sc.id), zap.Uint32("idx", idx))
	}
}
