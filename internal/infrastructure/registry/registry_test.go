package registry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/registry"
	"go.uber.org/zap"
)

func newTestRegistry(idleExpiry time.Duration) *registry.Registry {
	return registry.New(idleExpiry, zap.NewNop().Sugar())
}

func TestCreate_AllocatesUniqueIDs(t *testing.T) {
	reg := newTestRegistry(time.Minute)

	first, err := reg.Create("dQw4w9WgXcQ")
	require.NoError(t, err)
	second, err := reg.Create("dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, reg.Len())
}

func TestCreate_RequiresVideoRef(t *testing.T) {
	reg := newTestRegistry(time.Minute)

	_, err := reg.Create("")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGet(t *testing.T) {
	reg := newTestRegistry(time.Minute)

	room, err := reg.Create("dQw4w9WgXcQ")
	require.NoError(t, err)

	got, err := reg.Get(room.ID)
	require.NoError(t, err)
	assert.Same(t, room, got)

	_, err = reg.Get("nosuchroom")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = reg.Get("")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDelete_IsTerminalAndRunsHooks(t *testing.T) {
	reg := newTestRegistry(time.Minute)

	var evicted []string
	reg.AddEvictHook(func(roomID string) {
		evicted = append(evicted, roomID)
	})

	room, err := reg.Create("dQw4w9WgXcQ")
	require.NoError(t, err)

	require.NoError(t, reg.Delete(room.ID))
	assert.False(t, reg.Exists(room.ID))
	assert.Equal(t, []string{room.ID}, evicted)

	assert.ErrorIs(t, reg.Delete(room.ID), domain.ErrRoomNotFound)
}

func TestSweepExpired_RemovesIdleRoomsOnly(t *testing.T) {
	reg := newTestRegistry(30 * time.Millisecond)

	idle, err := reg.Create("dQw4w9WgXcQ")
	require.NoError(t, err)
	active, err := reg.Create("dQw4w9WgXcQ")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	reg.Touch(active.ID)

	expired := reg.SweepExpired()

	assert.Equal(t, []string{idle.ID}, expired)
	assert.False(t, reg.Exists(idle.ID))
	assert.True(t, reg.Exists(active.ID))
}

func TestSweepExpired_FiresExpireHooksButDeleteDoesNot(t *testing.T) {
	reg := newTestRegistry(10 * time.Millisecond)

	var expired []string
	reg.AddExpireHook(func(roomID string) {
		expired = append(expired, roomID)
	})

	deleted, err := reg.Create("dQw4w9WgXcQ")
	require.NoError(t, err)
	require.NoError(t, reg.Delete(deleted.ID))
	assert.Empty(t, expired, "explicit deletion is not an expiry")

	idle, err := reg.Create("dQw4w9WgXcQ")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	reg.SweepExpired()

	assert.Equal(t, []string{idle.ID}, expired)
}

func TestRestore_RebuildsRoomPausedAtSnapshotState(t *testing.T) {
	reg := newTestRegistry(time.Minute)

	room, err := reg.Restore(&domain.RoomSnapshot{
		RoomID:          "kxw2mhp4q9",
		VideoRef:        "dQw4w9WgXcQ",
		PositionSeconds: 42,
		IsPlaying:       true,
		Revision:        7,
	})
	require.NoError(t, err)
	require.True(t, reg.Exists("kxw2mhp4q9"))

	playback := room.Snapshot(time.Now())
	assert.Equal(t, 42.0, playback.PositionSeconds)
	assert.False(t, playback.IsPlaying, "restored rooms come back paused")
	assert.Equal(t, int64(7), playback.Revision)
}

func TestRestore_LiveRoomWins(t *testing.T) {
	reg := newTestRegistry(time.Minute)

	live, err := reg.Create("dQw4w9WgXcQ")
	require.NoError(t, err)

	restored, err := reg.Restore(&domain.RoomSnapshot{
		RoomID:   live.ID,
		VideoRef: "dQw4w9WgXcQ",
		Revision: 3,
	})
	require.NoError(t, err)
	assert.Same(t, live, restored)
}

func TestSweepExpired_SparesRoomsWithOnlineMembers(t *testing.T) {
	reg := newTestRegistry(10 * time.Millisecond)

	room, err := reg.Create("dQw4w9WgXcQ")
	require.NoError(t, err)

	online := map[string]int{room.ID: 1}
	reg.SetOnlineCounter(func(roomID string) int {
		return online[roomID]
	})

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, reg.SweepExpired(), "room with an online member must survive")

	online[room.ID] = 0
	expired := reg.SweepExpired()
	assert.Equal(t, []string{room.ID}, expired)
}
