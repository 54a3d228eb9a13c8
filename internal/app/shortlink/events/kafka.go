package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"shortener.local/internal/app/shortlink"
)

// message 是写入 Kafka 的 JSON 格式。
type message struct {
	Kind      string     `json:"kind"`
	Code      string     `json:"code"`
	URL       string     `json:"url"`
	Clicks    int64      `json:"clicks"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	At        time.Time  `json:"at"`
}

func encode(e shortlink.Event) ([]byte, error) {
	return json.Marshal(message{
		Kind:      string(e.Kind),
		Code:      e.Code,
		URL:       e.URL,
		Clicks:    e.Clicks,
		ExpiresAt: e.ExpiresAt,
		At:        e.At,
	})
}

// KafkaPublisher 异步写 Kafka，Publish 不阻塞请求路径；写失败只记日志。
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ shortlink.Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // 同一短码的事件落在同一分区，保证顺序
			Async:        true,
			BatchTimeout: 50 * time.Millisecond,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					slog.Error("kafka write failed", "messages", len(messages), "err", err)
				}
			},
		},
	}
}

func (k *KafkaPublisher) Publish(e shortlink.Event) {
	data, err := encode(e)
	if err != nil {
		slog.Error("encode event failed", "code", e.Code, "err", err)
		return
	}
	err = k.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(e.Code),
		Value: data,
	})
	if err != nil {
		slog.Error("kafka write failed", "err", err)
	}
}

// Close 会把缓冲中的消息刷出去。
func (k *KafkaPublisher) Close() {
	if err := k.writer.Close(); err != nil {
		slog.Error("kafka writer close failed", "err", err)
	}
}
