package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/foodhub/api/internal/services"
)

// PubSubRoomPublisher forwards room events to a Pub/Sub topic consumed by the socket gateways.
// The room and event names travel as attributes so gateways can filter subscriptions.
type PubSubRoomPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubRoomPublisher constructs a Pub/Sub backed room publisher.
func NewPubSubRoomPublisher(topic *pubsub.Topic) (*PubSubRoomPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub room publisher: topic is required")
	}
	return &PubSubRoomPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishToRoom publishes one event and waits for the server acknowledgement.
func (p *PubSubRoomPublisher) PublishToRoom(ctx context.Context, msg services.RoomMessage) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub room publisher: not initialised")
	}
	if strings.TrimSpace(msg.Room) == "" {
		return errors.New("pubsub room publisher: room is required")
	}

	data, err := p.marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal room message: %w", err)
	}

	attrs := map[string]string{"room": msg.Room}
	if event := strings.TrimSpace(msg.Event); event != "" {
		attrs["event"] = event
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish room message: %w", err)
	}
	return nil
}

// Stop flushes pending messages and stops the topic's publish goroutines.
func (p *PubSubRoomPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}
