package membership_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/membership"
	"github.com/syncstream/syncstream/internal/infrastructure/ws"
	"go.uber.org/zap"
)

type fakeChannel struct {
	mu     sync.Mutex
	events []*ws.Event
	closed bool
}

func (c *fakeChannel) Enqueue(event *ws.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ws.ErrChannelClosed
	}
	c.events = append(c.events, event)
	return nil
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type presenceRecord struct {
	memberID string
	change   membership.Change
}

type presenceRecorder struct {
	mu      sync.Mutex
	records []presenceRecord
}

func (r *presenceRecorder) observe(roomID string, member domain.Member, change membership.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, presenceRecord{memberID: member.ID, change: change})
}

func (r *presenceRecorder) all() []presenceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]presenceRecord(nil), r.records...)
}

func newTestManager(t *testing.T, grace time.Duration) (*membership.Manager, *presenceRecorder) {
	t.Helper()
	recorder := &presenceRecorder{}
	manager := membership.NewManager(grace, func(string) bool { return true }, zap.NewNop().Sugar())
	manager.SetPresenceFunc(recorder.observe)
	return manager, recorder
}

func join(t *testing.T, m *membership.Manager, roomID, memberID string) (*domain.Member, *fakeChannel) {
	t.Helper()
	ch := &fakeChannel{}
	member, err := m.Join(roomID, domain.Identity{MemberID: memberID, DisplayName: "member-" + memberID}, ch)
	require.NoError(t, err)
	return member, ch
}

func TestJoin_NewMemberIsConnectingUntilReady(t *testing.T) {
	manager, recorder := newTestManager(t, time.Minute)

	member, _ := join(t, manager, "room1", "m1")
	assert.Equal(t, domain.PresenceConnecting, member.Presence)
	assert.Equal(t, 0, manager.OnlineCount("room1"))
	assert.Empty(t, recorder.all(), "no presence event before the snapshot is delivered")

	require.NoError(t, manager.MarkReady("room1", "m1"))
	assert.Equal(t, 1, manager.OnlineCount("room1"))

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, membership.ChangeJoined, records[0].change)
}

func TestJoin_UnknownRoomRejected(t *testing.T) {
	manager := membership.NewManager(time.Minute, func(string) bool { return false }, zap.NewNop().Sugar())

	_, err := manager.Join("ghost", domain.Identity{MemberID: "m1", DisplayName: "alice"}, &fakeChannel{})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestJoin_SupersedesActiveSession(t *testing.T) {
	manager, _ := newTestManager(t, time.Minute)

	_, first := join(t, manager, "room1", "m1")
	require.NoError(t, manager.MarkReady("room1", "m1"))

	second := &fakeChannel{}
	member, err := manager.Join("room1", domain.Identity{MemberID: "m1", DisplayName: "alice"}, second)
	require.NoError(t, err)

	assert.True(t, first.isClosed(), "older session must be closed")
	assert.Equal(t, domain.PresenceOnline, member.Presence)
	assert.Equal(t, 1, manager.MemberCount("room1"), "still a single roster entry")

	// The superseded session's disconnect must not demote the new one.
	require.NoError(t, manager.Disconnect("room1", "m1", first))
	assert.Equal(t, 1, manager.OnlineCount("room1"))
}

func TestDisconnect_StartsGraceWindowThenReconnect(t *testing.T) {
	manager, recorder := newTestManager(t, time.Minute)

	_, ch := join(t, manager, "room1", "m1")
	require.NoError(t, manager.MarkReady("room1", "m1"))

	require.NoError(t, manager.Disconnect("room1", "m1", ch))
	assert.Equal(t, 0, manager.OnlineCount("room1"))
	assert.Equal(t, 1, manager.MemberCount("room1"), "offline member stays on the roster")

	// Reconnect inside the grace window keeps the same roster entry.
	member, err := manager.Join("room1", domain.Identity{MemberID: "m1", DisplayName: "alice"}, &fakeChannel{})
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOnline, member.Presence)
	assert.Equal(t, 1, manager.OnlineCount("room1"))

	changes := recorder.all()
	require.Len(t, changes, 3)
	assert.Equal(t, membership.ChangeJoined, changes[0].change)
	assert.Equal(t, membership.ChangeOffline, changes[1].change)
	assert.Equal(t, membership.ChangeOnline, changes[2].change)
}

func TestGraceWindowExpiryRemovesMember(t *testing.T) {
	manager, recorder := newTestManager(t, 20*time.Millisecond)

	_, ch := join(t, manager, "room1", "m1")
	require.NoError(t, manager.MarkReady("room1", "m1"))
	require.NoError(t, manager.Disconnect("room1", "m1", ch))

	assert.Eventually(t, func() bool {
		return manager.MemberCount("room1") == 0
	}, time.Second, 5*time.Millisecond)

	changes := recorder.all()
	require.NotEmpty(t, changes)
	assert.Equal(t, membership.ChangeLeft, changes[len(changes)-1].change)
}

func TestLeave_ExplicitIsImmediate(t *testing.T) {
	manager, recorder := newTestManager(t, time.Minute)

	_, ch := join(t, manager, "room1", "m1")
	require.NoError(t, manager.MarkReady("room1", "m1"))

	require.NoError(t, manager.Leave("room1", "m1", membership.ReasonExplicit))
	assert.True(t, ch.isClosed())
	assert.Equal(t, 0, manager.MemberCount("room1"))

	changes := recorder.all()
	assert.Equal(t, membership.ChangeLeft, changes[len(changes)-1].change)

	assert.ErrorIs(t, manager.Leave("room1", "m1", membership.ReasonExplicit), domain.ErrRoomNotFound)
}

func TestRecipients_OnlineOnlyWithExclusion(t *testing.T) {
	manager, _ := newTestManager(t, time.Minute)

	join(t, manager, "room1", "m1")
	require.NoError(t, manager.MarkReady("room1", "m1"))
	join(t, manager, "room1", "m2")
	require.NoError(t, manager.MarkReady("room1", "m2"))
	join(t, manager, "room1", "m3") // still connecting

	recipients := manager.Recipients("room1", "m1")
	require.Len(t, recipients, 1)
	assert.Equal(t, "m2", recipients[0].MemberID)

	recipients = manager.Recipients("room1", "")
	assert.Len(t, recipients, 2)
}

func TestListMembers_InsertionOrder(t *testing.T) {
	manager, _ := newTestManager(t, time.Minute)

	join(t, manager, "room1", "m1")
	join(t, manager, "room1", "m2")
	join(t, manager, "room1", "m3")

	members := manager.ListMembers("room1")
	require.Len(t, members, 3)
	assert.Equal(t, "m1", members[0].ID)
	assert.Equal(t, "m2", members[1].ID)
	assert.Equal(t, "m3", members[2].ID)
}

func TestDropRoom_ClosesAllChannels(t *testing.T) {
	manager, recorder := newTestManager(t, time.Minute)

	_, ch1 := join(t, manager, "room1", "m1")
	require.NoError(t, manager.MarkReady("room1", "m1"))
	_, ch2 := join(t, manager, "room1", "m2")

	before := len(recorder.all())
	manager.DropRoom("room1")

	assert.True(t, ch1.isClosed())
	assert.True(t, ch2.isClosed())
	assert.Equal(t, 0, manager.MemberCount("room1"))
	assert.Len(t, recorder.all(), before, "room teardown emits no per-member events")
}
