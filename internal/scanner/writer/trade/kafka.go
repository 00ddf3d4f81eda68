package trade

import (
	"context"
	"time"

	"soltrack/internal/scanner/model"
	"soltrack/internal/scanner/writer"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaTradeEventWriter 把已分类的成交作为事件推给下游
// key为钱包地址，同一钱包的事件落在同一分区保持有序
type KafkaTradeEventWriter struct {
	mq *kafka.Writer
	tl *zap.Logger

	topic string
}

func NewKafkaTradeEventWriter(mq *kafka.Writer, tl *zap.Logger, topic string) writer.BatchWriter[model.TradeRecord] {
	return &KafkaTradeEventWriter{mq: mq, tl: tl, topic: topic}
}

func (w *KafkaTradeEventWriter) BWrite(ctx context.Context, trades []model.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(trades))
	for _, tr := range trades {
		msgs = append(msgs, w.marshalToMsg(tr))
	}

	newCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// 重试机制
	var err error
	for attempt := 0; attempt < RETRY_COUNT; attempt++ {
		err = w.mq.WriteMessages(newCtx, msgs...)
		if err == nil {
			break // 成功则退出重试
		}
	}
	if err != nil {
		w.tl.Warn("❌ MQ写入失败，超过最大重试次数", zap.Error(err))
		return err
	}
	return nil
}

func (w *KafkaTradeEventWriter) Close() error {
	return nil
}

func (w *KafkaTradeEventWriter) marshalToMsg(tr model.TradeRecord) kafka.Message {
	event := model.NewTradeEvent(tr)
	jsonData, _ := sonic.Marshal(event)
	return kafka.Message{
		Topic: w.topic,
		Key:   []byte(tr.WalletAddress),
		Value: jsonData,
	}
}
