package realtime

import (
	"context"

	"github.com/foodhub/api/internal/services"
)

// DiscardPublisher drops room events after logging them. It backs the "none" transport used in
// local development.
type DiscardPublisher struct {
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewDiscardPublisher returns a publisher that only logs.
func NewDiscardPublisher(logger func(context.Context, string, map[string]any)) *DiscardPublisher {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &DiscardPublisher{logger: logger}
}

func (p *DiscardPublisher) PublishToRoom(ctx context.Context, msg services.RoomMessage) error {
	p.logger(ctx, "realtime.room.discarded", map[string]any{"room": msg.Room, "event": msg.Event})
	return nil
}
