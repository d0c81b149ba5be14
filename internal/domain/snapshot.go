package domain

import (
	"context"
	"time"
)

// RoomSnapshot is a point-in-time copy of a room's shared state, persisted
// on an interval so a room link that outlived a restart can be rebuilt. It
// is not consulted on the hot path.
type RoomSnapshot struct {
	RoomID          string    `bson:"room_id" json:"roomId"`
	VideoRef        string    `bson:"video_ref" json:"videoRef"`
	PositionSeconds float64   `bson:"position_seconds" json:"positionSeconds"`
	IsPlaying       bool      `bson:"is_playing" json:"isPlaying"`
	Revision        int64     `bson:"revision" json:"revision"`
	MemberCount     int       `bson:"member_count" json:"memberCount"`
	Timestamp       time.Time `bson:"timestamp" json:"timestamp"`
}

type RoomSnapshotRepository interface {
	Save(ctx context.Context, snapshot *RoomSnapshot) error
	GetLatest(ctx context.Context, roomID string) (*RoomSnapshot, error)
	// Delete purges a room's snapshot so an explicitly deleted room can
	// never come back through recovery.
	Delete(ctx context.Context, roomID string) error
	EnsureIndexes(ctx context.Context) error
}
