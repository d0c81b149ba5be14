package application_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncstream/syncstream/internal/application"
	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/ws"
	"go.uber.org/zap"
)

func newCoordinator(h *harness) *application.Coordinator {
	return application.NewCoordinator(h.registry, h.fanout, 30*time.Second, zap.NewNop().Sugar())
}

func TestApplyIntent_UnknownRoom(t *testing.T) {
	h := newHarness(t)
	coordinator := newCoordinator(h)

	_, err := coordinator.ApplyIntent("ghost", "m1", domain.Intent{Kind: domain.IntentPlay})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestApplyIntent_BroadcastsToOthersOnly(t *testing.T) {
	h := newHarness(t)
	room := h.createRoom(t)
	coordinator := newCoordinator(h)

	originator := h.joinOnline(t, room.ID, "m1")
	other := h.joinOnline(t, room.ID, "m2")

	state, err := coordinator.ApplyIntent(room.ID, "m1", domain.Intent{
		Kind:            domain.IntentPlay,
		ClientTimestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, state.IsPlaying)
	assert.Equal(t, int64(1), state.Revision)

	delivered := other.eventsOfType(ws.EventPlaybackUpdated)
	require.Len(t, delivered, 1)
	assert.Equal(t, state, delivered[0].Data)

	assert.Empty(t, originator.eventsOfType(ws.EventPlaybackUpdated),
		"originator applies locally and is excluded from the broadcast")
}

func TestApplyIntent_InvalidIntentNotBroadcast(t *testing.T) {
	h := newHarness(t)
	room := h.createRoom(t)
	coordinator := newCoordinator(h)

	other := h.joinOnline(t, room.ID, "m2")

	_, err := coordinator.ApplyIntent(room.ID, "m1", domain.Intent{
		Kind:            domain.IntentSeek,
		PositionSeconds: -10,
		ClientTimestamp: time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidIntent)
	assert.Empty(t, other.eventsOfType(ws.EventPlaybackUpdated))
}

func TestApplyIntent_RevisionsAreSequential(t *testing.T) {
	h := newHarness(t)
	room := h.createRoom(t)
	coordinator := newCoordinator(h)

	for i := int64(1); i <= 4; i++ {
		state, err := coordinator.ApplyIntent(room.ID, "m1", domain.Intent{
			Kind:            domain.IntentPause,
			ClientTimestamp: time.Now(),
		})
		require.NoError(t, err)
		assert.Equal(t, i, state.Revision)
	}
}

func TestApplyIntent_ConcurrentIntentsNoLostUpdate(t *testing.T) {
	h := newHarness(t)
	room := h.createRoom(t)
	coordinator := newCoordinator(h)

	const writers = 8
	const intentsEach = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		memberID := fmt.Sprintf("m%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < intentsEach; j++ {
				_, err := coordinator.ApplyIntent(room.ID, memberID, domain.Intent{
					Kind:            domain.IntentSeek,
					PositionSeconds: float64(j),
					ClientTimestamp: time.Now(),
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	snapshot, err := coordinator.Snapshot(room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(writers*intentsEach), snapshot.Revision,
		"every intent admitted through the room lock bumps the revision exactly once; none are lost")
}

func TestSnapshot_ExtrapolatesWhilePlaying(t *testing.T) {
	h := newHarness(t)
	room := h.createRoom(t)
	coordinator := newCoordinator(h)

	_, err := coordinator.ApplyIntent(room.ID, "m1", domain.Intent{
		Kind:            domain.IntentPlay,
		ClientTimestamp: time.Now(),
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	snapshot, err := coordinator.Snapshot(room.ID)
	require.NoError(t, err)
	assert.Greater(t, snapshot.PositionSeconds, 0.0)
	assert.Equal(t, int64(1), snapshot.Revision)

	_, err = coordinator.Snapshot("ghost")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestFanout_ClosedChannelDemotesMember(t *testing.T) {
	h := newHarness(t)
	room := h.createRoom(t)

	healthy := h.joinOnline(t, room.ID, "m1")
	broken := h.joinOnline(t, room.ID, "m2")
	broken.Close()

	h.fanout.Broadcast(room.ID, ws.NewRoomDeleted(room.ID), "")

	require.Len(t, healthy.eventsOfType(ws.EventRoomDeleted), 1,
		"one dead recipient must not abort delivery to the rest")
	assert.Equal(t, 1, h.members.OnlineCount(room.ID), "dead recipient demoted to offline")
	assert.Equal(t, 2, h.members.MemberCount(room.ID), "demotion starts the grace window, not removal")
}
