package messaging

import "time"

// RoomEventData is the payload carried by room lifecycle events.
type RoomEventData struct {
	RoomID      string    `json:"roomId"`
	VideoRef    string    `json:"videoRef"`
	MemberID    string    `json:"memberId,omitempty"`
	MemberCount int       `json:"memberCount"`
	OccurredAt  time.Time `json:"occurredAt"`
}
