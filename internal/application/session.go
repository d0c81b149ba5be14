package application

import (
	"errors"

	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/logging"
	"github.com/syncstream/syncstream/internal/infrastructure/membership"
	"github.com/syncstream/syncstream/internal/infrastructure/metrics"
	"github.com/syncstream/syncstream/internal/infrastructure/ratelimiter"
	"github.com/syncstream/syncstream/internal/infrastructure/registry"
	"github.com/syncstream/syncstream/internal/infrastructure/ws"
	"go.uber.org/zap"
)

// Session glues one websocket client to the room services: join
// orchestration on the way in, command dispatch while connected, presence
// demotion on the way out. It is the gateway's CommandHandler.
type Session struct {
	registry    *registry.Registry
	members     *membership.Manager
	coordinator *Coordinator
	chat        *ChatRelay

	intentLimiter ratelimiter.Limiter
	chatLimiter   ratelimiter.Limiter

	logger *zap.SugaredLogger
}

func NewSession(
	reg *registry.Registry,
	members *membership.Manager,
	coordinator *Coordinator,
	chat *ChatRelay,
	intentLimiter ratelimiter.Limiter,
	chatLimiter ratelimiter.Limiter,
	logger *zap.SugaredLogger,
) *Session {
	return &Session{
		registry:      reg,
		members:       members,
		coordinator:   coordinator,
		chat:          chat,
		intentLimiter: intentLimiter,
		chatLimiter:   chatLimiter,
		logger:        logger,
	}
}

// Join admits a member's channel into its room and delivers the initial
// snapshot: playback state extrapolated to now, the member roster and
// retained chat (or only the chat after sinceMessageID on reconnect). The
// member goes online only after the snapshot is on its channel, so it can
// never observe a delta before the baseline.
func (s *Session) Join(roomID string, identity domain.Identity, ch membership.Channel, sinceMessageID string) (*domain.Member, error) {
	member, err := s.members.Join(roomID, identity, ch)
	if err != nil {
		return nil, err
	}

	playback, err := s.coordinator.Snapshot(roomID)
	if err != nil {
		// Room evicted between the membership check and the read.
		_ = s.members.Leave(roomID, member.ID, membership.ReasonExplicit)
		return nil, err
	}

	snapshot := ws.NewSnapshot(
		roomID,
		playback,
		s.members.ListMembers(roomID),
		s.chat.History(roomID, sinceMessageID),
	)
	if err := ch.Enqueue(snapshot); err != nil {
		_ = s.members.Leave(roomID, member.ID, membership.ReasonExplicit)
		return nil, err
	}

	if err := s.members.MarkReady(roomID, member.ID); err != nil {
		return nil, err
	}
	s.registry.Touch(roomID)

	s.logger.Infow("member joined room",
		"category", logging.Realtime,
		"subCategory", logging.Presence,
		string(logging.RoomId), roomID,
		string(logging.MemberId), member.ID,
	)

	return member, nil
}

func limiterKey(c *ws.Client) string {
	return c.RoomID + ":" + c.MemberID
}

func (s *Session) HandleIntent(c *ws.Client, cmd ws.Command) {
	if cmd.Intent == nil {
		_ = c.Enqueue(ws.NewError(c.RoomID, "intent command missing intent body"))
		return
	}

	if !s.intentLimiter.Allow(limiterKey(c)) {
		metrics.IntentsRejected.WithLabelValues("rate_limited").Inc()
		_ = c.Enqueue(ws.NewRateLimited(c.RoomID))
		return
	}

	state, err := s.coordinator.ApplyIntent(c.RoomID, c.MemberID, *cmd.Intent)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			_ = c.Enqueue(ws.NewRoomDeleted(c.RoomID))
			c.Close()
		case errors.Is(err, domain.ErrInvalidIntent):
			_ = c.Enqueue(ws.NewError(c.RoomID, "invalid playback intent"))
		default:
			_ = c.Enqueue(ws.NewError(c.RoomID, "failed to apply intent"))
		}
		return
	}

	// The originator is excluded from the broadcast; acknowledge with the
	// authoritative state so its revision tracking stays aligned.
	_ = c.Enqueue(ws.NewPlaybackUpdated(c.RoomID, state))
}

func (s *Session) HandleChat(c *ws.Client, cmd ws.Command) {
	if !s.chatLimiter.Allow(limiterKey(c)) {
		_ = c.Enqueue(ws.NewRateLimited(c.RoomID))
		return
	}

	if _, err := s.chat.Post(c.RoomID, c.MemberID, cmd.Text); err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			_ = c.Enqueue(ws.NewRoomDeleted(c.RoomID))
			c.Close()
		case errors.Is(err, domain.ErrInvalidInput):
			_ = c.Enqueue(ws.NewError(c.RoomID, "message is empty or too long"))
		default:
			_ = c.Enqueue(ws.NewError(c.RoomID, "failed to post message"))
		}
	}
}

// HandleLeave is the explicit exit: immediate removal, no grace window.
func (s *Session) HandleLeave(c *ws.Client) {
	err := s.members.Leave(c.RoomID, c.MemberID, membership.ReasonExplicit)
	if err != nil && !errors.Is(err, domain.ErrMemberNotFound) && !errors.Is(err, domain.ErrRoomNotFound) {
		s.logger.Warnw("explicit leave failed",
			string(logging.RoomId), c.RoomID,
			string(logging.MemberId), c.MemberID,
			"error", err,
		)
	}
}

// Disconnected fires when the read pump exits for any reason. Channel
// identity keeps a superseded session from demoting the member that just
// reconnected on a new connection.
func (s *Session) Disconnected(c *ws.Client) {
	_ = s.members.Disconnect(c.RoomID, c.MemberID, c)
}
