package broker

import (
	"lotero/internal/config"

	"github.com/segmentio/kafka-go"
)

func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // same code, same partition
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		MaxAttempts:  5,
	}
}
