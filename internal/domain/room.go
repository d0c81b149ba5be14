package domain

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"
)

const (
	roomIDLength = 10

	// Lowercase + digits keeps room ids readable inside invite links.
	roomIDChars = "abcdefghjkmnpqrstuvwxyz23456789"
)

var (
	charsetLen = big.NewInt(int64(len(roomIDChars)))

	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrRegistryExhausted = errors.New("room id space exhausted")
	ErrMemberNotFound    = errors.New("member not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrInvalidVideoRef   = errors.New("invalid video reference")
	ErrInvalidIntent     = errors.New("invalid intent")
	ErrRateLimited       = errors.New("rate limited")
)

// Room is a single watch-party session scoped to one video. Playback state
// is only reachable through ApplyIntent/Snapshot, which serialize on the
// room's own mutex; membership and chat are tracked by their owning
// components, keyed by the room id.
type Room struct {
	ID        string    `json:"id"`
	VideoRef  string    `json:"videoRef"`
	CreatedAt time.Time `json:"createdAt"`

	mu       sync.Mutex
	playback PlaybackState
}

func NewRoom(id, videoRef string) (*Room, error) {
	if id == "" || videoRef == "" {
		return nil, ErrInvalidInput
	}

	now := time.Now()

	return &Room{
		ID:        id,
		VideoRef:  videoRef,
		CreatedAt: now,
		playback:  NewPlaybackState(now),
	}, nil
}

// RestoreRoom rebuilds a room from a persisted snapshot. Playback comes
// back paused at the snapshot position: after a restart every member is
// gone, so nothing should be advancing.
func RestoreRoom(snapshot *RoomSnapshot, now time.Time) (*Room, error) {
	room, err := NewRoom(snapshot.RoomID, snapshot.VideoRef)
	if err != nil {
		return nil, err
	}

	room.playback = PlaybackState{
		PositionSeconds: snapshot.PositionSeconds,
		IsPlaying:       false,
		LastUpdatedAt:   now,
		Revision:        snapshot.Revision,
	}

	return room, nil
}

// ApplyIntent mutates playback state under the room mutex. All work inside
// the critical section is in-memory; callers must not hold the lock across
// channel sends or other I/O.
func (r *Room) ApplyIntent(intent Intent, now time.Time, maxSkew time.Duration) (PlaybackState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := r.playback.Apply(intent, now, maxSkew)
	if err != nil {
		return PlaybackState{}, err
	}

	r.playback = next
	return next, nil
}

// Snapshot returns the playback state extrapolated to now, keeping the
// stored revision. Used to reconcile joining and reconnecting members.
func (r *Room) Snapshot(now time.Time) PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.playback.At(now)
}

func GenerateRoomID() (string, error) {
	var sb strings.Builder
	sb.Grow(roomIDLength)

	for i := 0; i < roomIDLength; i++ {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		sb.WriteByte(roomIDChars[n.Int64()])
	}

	return sb.String(), nil
}
