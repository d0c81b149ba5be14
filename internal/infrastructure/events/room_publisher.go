package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/syncstream/syncstream/internal/infrastructure/contracts"
	"github.com/syncstream/syncstream/internal/infrastructure/messaging"
)

// RoomEvents publishes room lifecycle events for out-of-process consumers
// (audit, analytics). Broadcast to room members never goes through here.
type RoomEvents interface {
	RoomCreated(ctx context.Context, roomID, videoRef string) error
	RoomExpired(ctx context.Context, roomID string) error
	RoomDeleted(ctx context.Context, roomID string) error
	MemberJoined(ctx context.Context, roomID, memberID string, memberCount int) error
	MemberLeft(ctx context.Context, roomID, memberID string, memberCount int) error
}

type RoomPublisher struct {
	rabbitmq *messaging.RabbitMQ
}

func NewRoomPublisher(rabbitmq *messaging.RabbitMQ) *RoomPublisher {
	return &RoomPublisher{
		rabbitmq: rabbitmq,
	}
}

func (p *RoomPublisher) publish(ctx context.Context, routingKey string, data messaging.RoomEventData) error {
	data.OccurredAt = time.Now().UTC()

	payload, err := json.Marshal(contractsMessage(data))
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(ctx, routingKey, payload)
}

func contractsMessage(data messaging.RoomEventData) contracts.AmqpMessage {
	body, _ := json.Marshal(data)
	return contracts.AmqpMessage{
		RoomID: data.RoomID,
		Data:   body,
	}
}

func (p *RoomPublisher) RoomCreated(ctx context.Context, roomID, videoRef string) error {
	return p.publish(ctx, contracts.EventRoomCreated, messaging.RoomEventData{
		RoomID:   roomID,
		VideoRef: videoRef,
	})
}

func (p *RoomPublisher) RoomExpired(ctx context.Context, roomID string) error {
	return p.publish(ctx, contracts.EventRoomExpired, messaging.RoomEventData{
		RoomID: roomID,
	})
}

func (p *RoomPublisher) RoomDeleted(ctx context.Context, roomID string) error {
	return p.publish(ctx, contracts.EventRoomDeleted, messaging.RoomEventData{
		RoomID: roomID,
	})
}

func (p *RoomPublisher) MemberJoined(ctx context.Context, roomID, memberID string, memberCount int) error {
	return p.publish(ctx, contracts.EventMemberJoined, messaging.RoomEventData{
		RoomID:      roomID,
		MemberID:    memberID,
		MemberCount: memberCount,
	})
}

func (p *RoomPublisher) MemberLeft(ctx context.Context, roomID, memberID string, memberCount int) error {
	return p.publish(ctx, contracts.EventMemberLeft, messaging.RoomEventData{
		RoomID:      roomID,
		MemberID:    memberID,
		MemberCount: memberCount,
	})
}

// NoopPublisher is wired when messaging is disabled in config.
type NoopPublisher struct{}

func (NoopPublisher) RoomCreated(context.Context, string, string) error       { return nil }
func (NoopPublisher) RoomExpired(context.Context, string) error               { return nil }
func (NoopPublisher) RoomDeleted(context.Context, string) error               { return nil }
func (NoopPublisher) MemberJoined(context.Context, string, string, int) error { return nil }
func (NoopPublisher) MemberLeft(context.Context, string, string, int) error   { return nil }
