package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/foodhub/api/internal/services"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRoomPublisher writes room events to a Kafka topic keyed by room, which keeps the events
// of one room ordered within a partition.
type KafkaRoomPublisher struct {
	writer messageWriter
}

// NewKafkaWriter builds a writer for the given brokers and topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaRoomPublisher wraps a Kafka writer.
func NewKafkaRoomPublisher(writer messageWriter) (*KafkaRoomPublisher, error) {
	if writer == nil {
		return nil, errors.New("kafka room publisher: writer is required")
	}
	return &KafkaRoomPublisher{writer: writer}, nil
}

func (p *KafkaRoomPublisher) PublishToRoom(ctx context.Context, msg services.RoomMessage) error {
	if strings.TrimSpace(msg.Room) == "" {
		return errors.New("kafka room publisher: room is required")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal room message: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Room),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(msg.Event)},
		},
	})
	if err != nil {
		return fmt.Errorf("write room message: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaRoomPublisher) Close() error {
	return p.writer.Close()
}
