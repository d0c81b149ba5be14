package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/rabbitmq/amqp091-go"
	"github.com/syncstream/syncstream/internal/infrastructure/contracts"
	"github.com/syncstream/syncstream/internal/infrastructure/messaging"
)

type roomConsumer struct {
	rabbitmq *messaging.RabbitMQ
}

func NewRoomConsumer(rabbitmq *messaging.RabbitMQ) *roomConsumer {
	return &roomConsumer{
		rabbitmq: rabbitmq,
	}
}

// Listen drains the room event queue and writes an audit line per event.
func (c *roomConsumer) Listen() error {
	return c.rabbitmq.ConsumeMessages(messaging.RoomsQueue, func(ctx context.Context, msg amqp091.Delivery) error {
		var message contracts.AmqpMessage
		if err := json.Unmarshal(msg.Body, &message); err != nil {
			log.Printf("Failed to unmarshal message: %v", err)
			return err
		}

		var payload messaging.RoomEventData
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			log.Printf("Failed to unmarshal message: %v", err)
			return err
		}

		log.Printf("room event %s: room=%s member=%s members=%d",
			msg.RoutingKey, payload.RoomID, payload.MemberID, payload.MemberCount)

		return nil
	})
}
