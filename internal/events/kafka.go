package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"retailpos/backend/internal/domain"
)

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			BatchSize:    32,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// PublishSale keys messages by store so one store's sales stay ordered
// within a partition.
func (p *KafkaPublisher) PublishSale(ctx context.Context, sale domain.Sale) error {
	payload, err := json.Marshal(sale)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sale.StoreID),
		Value: payload,
	})
}
