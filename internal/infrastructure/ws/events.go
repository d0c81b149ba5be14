package ws

const (
	EventSnapshot        = "room.snapshot"
	EventPlaybackUpdated = "playback.updated"
	EventChatMessage     = "chat.message"

	EventMemberJoined    = "member.joined"
	EventMemberLeft      = "member.left"
	EventPresenceChanged = "member.presence"

	EventError          = "error"
	EventRateLimited    = "error.rate_limited"
	AuthenticationError = "error.auth"
	JoinFailed          = "error.join"

	EventRoomDeleted = "room.deleted"
)
