package application

import (
	"context"
	"errors"
	"time"

	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/events"
	"github.com/syncstream/syncstream/internal/infrastructure/logging"
	"github.com/syncstream/syncstream/internal/infrastructure/membership"
	"github.com/syncstream/syncstream/internal/infrastructure/metrics"
	"github.com/syncstream/syncstream/internal/infrastructure/ws"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Fanout delivers events to every online member of a room. One slow or dead
// recipient never blocks or aborts delivery to the rest: a closed channel
// demotes that member to offline, a full buffer drops the event for that
// member only.
type Fanout struct {
	members   *membership.Manager
	publisher events.RoomEvents
	logger    *zap.SugaredLogger
}

func NewFanout(members *membership.Manager, publisher events.RoomEvents, logger *zap.SugaredLogger) *Fanout {
	return &Fanout{
		members:   members,
		publisher: publisher,
		logger:    logger,
	}
}

// Broadcast sends event to every online member of roomID except exclude.
// Pass exclude == "" to include everyone.
func (f *Fanout) Broadcast(roomID string, event *ws.Event, exclude string) {
	for _, recipient := range f.members.Recipients(roomID, exclude) {
		err := recipient.Channel.Enqueue(event)
		if err == nil {
			continue
		}

		if errors.Is(err, ws.ErrChannelClosed) {
			metrics.DeliveryFailures.Inc()
			_ = f.members.Disconnect(roomID, recipient.MemberID, recipient.Channel)
			continue
		}

		// Buffer full: the event is lost for this member only. The next
		// snapshot or playback update reconciles them.
		f.logger.Warnw("dropping event for slow client",
			"category", logging.Realtime,
			"subCategory", logging.Broadcast,
			string(logging.RoomId), roomID,
			string(logging.MemberId), recipient.MemberID,
			"eventType", event.Type,
		)
	}
}

// OnPresence translates membership changes into room events and lifecycle
// publications. Wired as the manager's PresenceFunc; runs outside the
// manager lock.
func (f *Fanout) OnPresence(roomID string, member domain.Member, change membership.Change) {
	switch change {
	case membership.ChangeJoined:
		f.Broadcast(roomID, ws.NewMemberJoined(roomID, member), member.ID)
		f.publishMemberJoined(roomID, member.ID)
	case membership.ChangeOnline, membership.ChangeOffline:
		f.Broadcast(roomID, ws.NewPresenceChanged(roomID, member), member.ID)
	case membership.ChangeLeft:
		f.Broadcast(roomID, ws.NewMemberLeft(roomID, member), member.ID)
		f.publishMemberLeft(roomID, member.ID)
	}
}

// OnRoomExpired publishes the lifecycle event for a room the idle sweep
// removed. Wired as a registry expire hook.
func (f *Fanout) OnRoomExpired(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := f.publisher.RoomExpired(ctx, roomID); err != nil {
		f.logger.Warnw("failed to publish room expired event",
			"category", logging.RabbitMQ,
			string(logging.RoomId), roomID,
			"error", err,
		)
	}
}

func (f *Fanout) publishMemberJoined(roomID, memberID string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := f.publisher.MemberJoined(ctx, roomID, memberID, f.members.MemberCount(roomID)); err != nil {
		f.logger.Warnw("failed to publish member joined event",
			"category", logging.RabbitMQ,
			string(logging.RoomId), roomID,
			"error", err,
		)
	}
}

func (f *Fanout) publishMemberLeft(roomID, memberID string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := f.publisher.MemberLeft(ctx, roomID, memberID, f.members.MemberCount(roomID)); err != nil {
		f.logger.Warnw("failed to publish member left event",
			"category", logging.RabbitMQ,
			string(logging.RoomId), roomID,
			"error", err,
		)
	}
}
