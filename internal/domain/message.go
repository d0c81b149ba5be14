package domain

import "time"

// Message is immutable once appended; ids are monotonic ULIDs per room, so
// lexicographic order equals send order.
type Message struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"roomId"`
	SenderID string    `json:"senderId"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}
