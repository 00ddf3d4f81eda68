package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	// KafkaMessagesReceived Kafka 消费相关
	KafkaMessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_received_total",
			Help: "Total number of messages received from Kafka.",
		},
		[]string{"topic"},
	)
	KafkaWorkerMessagesDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_consumer_worker_dispatch_count_total",
			Help: "Number of scan requests assigned to each worker.",
		},
		[]string{"worker_id"},
	)
	KafkaWorkerMessagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_worker_messages_processed_total",
			Help: "Total number of messages processed by each scan consumer worker.",
		},
		[]string{"worker_id"},
	)
	KafkaWorkerProcessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_worker_process_duration_seconds",
			Help:    "Time taken to process a message by each scan consumer worker.",
			Buckets: []float64{0.1, 0.5, 1.0, 5.0, 15.0, 30.0, 60.0, 120.0, 300.0},
		},
		[]string{"worker_id"},
	)

	// WalletScansStarted 扫描流水线指标
	WalletScansStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_scans_started_total",
			Help: "Total number of wallet scans started.",
		},
		[]string{"trigger"},
	)
	WalletScansCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_scans_completed_total",
			Help: "Total number of wallet scans completed, by result.",
		},
		[]string{"result"},
	)
	WalletScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wallet_scan_duration_seconds",
			Help:    "End to end duration of a single wallet scan.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	SignaturesCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_signatures_collected_total",
			Help: "Total number of signatures collected across all scans.",
		},
	)
	TransactionsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_transactions_fetched_total",
			Help: "Total number of transaction fetch outcomes.",
		},
		[]string{"outcome"},
	)
	TradesClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_trades_classified_total",
			Help: "Total number of trades classified, by kind.",
		},
		[]string{"kind"},
	)

	// UpstreamRetries 上游可靠性指标
	UpstreamRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_retries_total",
			Help: "Total number of retry attempts against upstream services.",
		},
		[]string{"op"},
	)
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		},
		[]string{"upstream"},
	)
	BreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_breaker_trips_total",
			Help: "Total number of times a circuit breaker opened.",
		},
		[]string{"upstream"},
	)

	// AsyncWriterMessagesQueued AsyncWriter 指标
	AsyncWriterMessagesQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_messages_queued_total",
			Help: "Total number of messages queued to async writer.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterMessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_messages_dropped_total",
			Help: "Total number of messages dropped due to full queue.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "async_writer_batch_size",
			Help:    "Number of items in each batch submitted to the writer.",
			Buckets: []float64{10, 50, 100, 200, 500, 1000},
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_flush_count_total",
			Help: "Total number of batch flushes triggered.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "async_writer_flush_duration_seconds",
			Help:    "Time taken to flush a batch.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"writer_id"},
	)
	AsyncWriterItemsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_items_written_total",
			Help: "Total number of items successfully written by the async writer.",
		},
		[]string{"writer_id"},
	)
)

func init() {
	prometheus.MustRegister(
		// kafka指标
		KafkaMessagesReceived,
		KafkaWorkerMessagesDispatched,
		KafkaWorkerMessagesProcessed,
		KafkaWorkerProcessDuration,

		// 扫描流水线指标
		WalletScansStarted,
		WalletScansCompleted,
		WalletScanDuration,
		SignaturesCollected,
		TransactionsFetched,
		TradesClassified,

		// 上游可靠性指标
		UpstreamRetries,
		BreakerState,
		BreakerTrips,

		// async 写入指标
		AsyncWriterMessagesQueued,
		AsyncWriterMessagesDropped,
		AsyncWriterBatchSize,
		AsyncWriterFlushCount,
		AsyncWriterFlushDuration,
		AsyncWriterItemsWritten,
	)
}
