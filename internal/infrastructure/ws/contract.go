package ws

import "github.com/syncstream/syncstream/internal/domain"

// Event is the single server-to-client frame shape. FIFO per channel; no
// cross-channel ordering is promised.
type Event struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Data   any    `json:"data"`
}

// Command is the single client-to-server frame shape. Reconnect chat
// catch-up is requested through the join URL, not a command.
type Command struct {
	Type   string         `json:"type"` // intent | chat | leave
	Intent *domain.Intent `json:"intent,omitempty"`
	Text   string         `json:"text,omitempty"`
}

const (
	CommandIntent = "intent"
	CommandChat   = "chat"
	CommandLeave  = "leave"
)

// Payload structs

type SnapshotPayload struct {
	Playback domain.PlaybackState `json:"playback"`
	Members  []domain.Member      `json:"members"`
	Chat     []domain.Message     `json:"chat"`
}

type PresencePayload struct {
	MemberID    string          `json:"memberId"`
	DisplayName string          `json:"displayName"`
	AvatarRef   string          `json:"avatarRef,omitempty"`
	Presence    domain.Presence `json:"presence"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}

func NewSnapshot(roomID string, playback domain.PlaybackState, members []domain.Member, chat []domain.Message) *Event {
	return &Event{
		Type:   EventSnapshot,
		RoomID: roomID,
		Data: SnapshotPayload{
			Playback: playback,
			Members:  members,
			Chat:     chat,
		},
	}
}

func NewPlaybackUpdated(roomID string, playback domain.PlaybackState) *Event {
	return &Event{
		Type:   EventPlaybackUpdated,
		RoomID: roomID,
		Data:   playback,
	}
}

func NewChatMessage(message domain.Message) *Event {
	return &Event{
		Type:   EventChatMessage,
		RoomID: message.RoomID,
		Data:   message,
	}
}

func presencePayload(member domain.Member) PresencePayload {
	return PresencePayload{
		MemberID:    member.ID,
		DisplayName: member.DisplayName,
		AvatarRef:   member.AvatarRef,
		Presence:    member.Presence,
	}
}

func NewMemberJoined(roomID string, member domain.Member) *Event {
	return &Event{
		Type:   EventMemberJoined,
		RoomID: roomID,
		Data:   presencePayload(member),
	}
}

func NewMemberLeft(roomID string, member domain.Member) *Event {
	return &Event{
		Type:   EventMemberLeft,
		RoomID: roomID,
		Data:   presencePayload(member),
	}
}

func NewPresenceChanged(roomID string, member domain.Member) *Event {
	return &Event{
		Type:   EventPresenceChanged,
		RoomID: roomID,
		Data:   presencePayload(member),
	}
}

func NewRoomDeleted(roomID string) *Event {
	return &Event{
		Type:   EventRoomDeleted,
		RoomID: roomID,
	}
}

func NewError(roomID, message string) *Event {
	return &Event{
		Type:   EventError,
		RoomID: roomID,
		Data: ErrorPayload{
			Message: message,
			Retry:   false,
		},
	}
}

func NewRateLimited(roomID string) *Event {
	return &Event{
		Type:   EventRateLimited,
		RoomID: roomID,
		Data: ErrorPayload{
			Code:    "RATE_LIMITED",
			Message: "Too many requests. Slow down.",
			Retry:   true,
		},
	}
}

func NewAuthError(roomID, message string) *Event {
	return &Event{
		Type:   AuthenticationError,
		RoomID: roomID,
		Data: ErrorPayload{
			Code:    "AUTH_FAILED",
			Message: message,
			Retry:   true,
		},
	}
}

func NewJoinFailed(roomID, reason string) *Event {
	return &Event{
		Type:   JoinFailed,
		RoomID: roomID,
		Data: ErrorPayload{
			Code:    "JOIN_FAILED",
			Message: reason,
			Retry:   true,
		},
	}
}
