package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncstream/syncstream/internal/domain"
)

func TestGenerateRoomID(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id, err := domain.GenerateRoomID()
		require.NoError(t, err)
		assert.Len(t, id, 10)
		for _, c := range id {
			assert.Contains(t, "abcdefghjkmnpqrstuvwxyz23456789", string(c))
		}
		assert.False(t, seen[id], "generated a duplicate id in 100 draws")
		seen[id] = true
	}
}

func TestNewRoom_RequiresIDAndVideoRef(t *testing.T) {
	_, err := domain.NewRoom("", "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = domain.NewRoom("abc123defg", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRoom_StartsPausedAtZero(t *testing.T) {
	room, err := domain.NewRoom("abc123defg", "dQw4w9WgXcQ")
	require.NoError(t, err)

	snapshot := room.Snapshot(time.Now())
	assert.False(t, snapshot.IsPlaying)
	assert.Equal(t, 0.0, snapshot.PositionSeconds)
	assert.Equal(t, int64(0), snapshot.Revision)
}

func TestRoom_ApplyIntentAdvancesState(t *testing.T) {
	room, err := domain.NewRoom("abc123defg", "dQw4w9WgXcQ")
	require.NoError(t, err)

	now := time.Now()
	state, err := room.ApplyIntent(domain.Intent{
		Kind:            domain.IntentPlay,
		ClientTimestamp: now,
	}, now, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, state.IsPlaying)
	assert.Equal(t, int64(1), state.Revision)

	snapshot := room.Snapshot(now.Add(4 * time.Second))
	assert.InDelta(t, 4.0, snapshot.PositionSeconds, 0.001)
	assert.Equal(t, int64(1), snapshot.Revision)
}

func TestRoom_RejectedIntentLeavesStateUntouched(t *testing.T) {
	room, err := domain.NewRoom("abc123defg", "dQw4w9WgXcQ")
	require.NoError(t, err)

	now := time.Now()
	_, err = room.ApplyIntent(domain.Intent{
		Kind:            domain.IntentSeek,
		PositionSeconds: -5,
		ClientTimestamp: now,
	}, now, 30*time.Second)
	assert.ErrorIs(t, err, domain.ErrInvalidIntent)

	snapshot := room.Snapshot(now)
	assert.Equal(t, int64(0), snapshot.Revision)
	assert.Equal(t, 0.0, snapshot.PositionSeconds)
}

func TestNewMember_Validation(t *testing.T) {
	valid := domain.Identity{MemberID: "m1", DisplayName: "alice"}
	member, err := domain.NewMember(valid)
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceConnecting, member.Presence)
	assert.Equal(t, "m1", member.ID)

	_, err = domain.NewMember(domain.Identity{DisplayName: "alice"})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = domain.NewMember(domain.Identity{MemberID: "m1", DisplayName: "a"})
	assert.Error(t, err, "single-character names are too short")

	_, err = domain.NewMember(domain.Identity{MemberID: "m1", DisplayName: "has space"})
	assert.Error(t, err)
}
