package kafka

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"dreamjournal/internal/config"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// MessageProducer defines the interface for a Kafka message producer.
type MessageProducer interface {
	SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error
	Close()
}

// confluentKafkaProducer is an implementation of MessageProducer using confluent-kafka-go.
type confluentKafkaProducer struct {
	producer *kafka.Producer
	cfg      config.KafkaConfig
}

// NewConfluentKafkaProducer creates a new Kafka producer instance using confluent-kafka-go.
func NewConfluentKafkaProducer(cfg config.KafkaConfig) (MessageProducer, error) {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"security.protocol": cfg.Protocol,
	}
	if cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", cfg.ClientID)
	}

	p, err := kafka.NewProducer(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &confluentKafkaProducer{producer: p, cfg: cfg}, nil
}

// SendMessage sends a single message to the specified Kafka topic.
// This implementation waits for the delivery report synchronously.
func (p *confluentKafkaProducer) SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error {
	deliveryChan := make(chan kafka.Event, 1)
	defer close(deliveryChan)

	kafkaMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          payload,
		Timestamp:      time.Now(),
	}

	err := p.producer.Produce(kafkaMsg, deliveryChan)
	if err != nil {
		// 本地错误（如生产者队列已满）；真正的投递错误通过 deliveryChan 报告
		return fmt.Errorf("kafka producer failed to enqueue message for topic %s: %w", topic, err)
	}

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("kafka producer: unexpected event type received on delivery channel: %T %v", e, e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("kafka producer: delivery failed for topic %s: %w", topic, m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("kafka producer: context canceled while waiting for delivery report for topic %s: %w", topic, ctx.Err())
	}
}

// Close flushes any outstanding messages and closes the Kafka producer.
func (p *confluentKafkaProducer) Close() {
	if p.producer != nil {
		log.Println("Closing Kafka producer...")
		remaining := p.producer.Flush(15 * 1000)
		if remaining > 0 {
			log.Printf("Warning: %d messages still outstanding after flush, producer closing.", remaining)
		}
		p.producer.Close()
		log.Println("Kafka producer closed.")
	}
}
