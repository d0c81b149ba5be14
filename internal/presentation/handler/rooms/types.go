package rooms

import (
	"time"

	"github.com/syncstream/syncstream/internal/domain"
)

// createRoomRequest creates a new watch-party room around one video
type createRoomRequest struct {
	VideoURL string `json:"videoUrl"` // YouTube URL or bare 11-char video id
}

// createRoomResponse is returned after the room is registered
type createRoomResponse struct {
	RoomID    string    `json:"roomId"`
	VideoRef  string    `json:"videoRef"`
	EmbedURL  string    `json:"embedUrl"`
	CreatedAt time.Time `json:"createdAt"`
	MemberID  string    `json:"memberId"` // Guest identity of the creator
}

// memberResponse is one roster entry
type memberResponse struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	AvatarRef   string          `json:"avatarRef,omitempty"`
	Presence    domain.Presence `json:"presence"`
}

// roomResponse is the full room view for polling clients
type roomResponse struct {
	ID        string               `json:"id"`
	VideoRef  string               `json:"videoRef"`
	EmbedURL  string               `json:"embedUrl"`
	CreatedAt time.Time            `json:"createdAt"`
	Playback  domain.PlaybackState `json:"playback"`
	Members   []memberResponse     `json:"members"`
}

// inviteResponse carries the shareable room link and message
type inviteResponse struct {
	RoomID string `json:"roomId"`
	Link   string `json:"link"`
	Text   string `json:"text"`
}

// historyResponse is the retained chat log, oldest first
type historyResponse struct {
	RoomID   string           `json:"roomId"`
	Messages []domain.Message `json:"messages"`
}
