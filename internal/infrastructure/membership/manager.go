package membership

import (
	"sync"
	"time"

	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/ws"
	"go.uber.org/zap"
)

type Reason string

const (
	ReasonExplicit Reason = "explicit"
	ReasonTimeout  Reason = "timeout"
)

type Change string

const (
	ChangeJoined  Change = "joined"
	ChangeOnline  Change = "online"
	ChangeOffline Change = "offline"
	ChangeLeft    Change = "left"
)

// Channel is the gateway-owned delivery handle for one member. The manager
// holds it while the member is online but never owns its lifecycle beyond
// closing a superseded session.
type Channel interface {
	Enqueue(event *ws.Event) error
	Close()
}

type Recipient struct {
	MemberID string
	Channel  Channel
}

// PresenceFunc observes membership changes; called outside the manager
// lock. Wired to the fan-out layer.
type PresenceFunc func(roomID string, member domain.Member, change Change)

type memberState struct {
	member  *domain.Member
	channel Channel
	grace   *time.Timer
}

type roster struct {
	order   []string
	members map[string]*memberState
}

// Manager tracks which connections belong to which room and drives the
// presence machine: connecting → online → offline → removed, with
// offline → online as the only back-edge.
type Manager struct {
	mu      sync.Mutex
	rosters map[string]*roster

	grace      time.Duration
	roomExists func(roomID string) bool
	onPresence PresenceFunc

	logger *zap.SugaredLogger
}

func NewManager(grace time.Duration, roomExists func(string) bool, logger *zap.SugaredLogger) *Manager {
	if grace == 0 {
		grace = time.Minute
	}

	return &Manager{
		rosters:    make(map[string]*roster),
		grace:      grace,
		roomExists: roomExists,
		logger:     logger,
	}
}

func (m *Manager) SetPresenceFunc(fn PresenceFunc) {
	m.onPresence = fn
}

func (m *Manager) notify(roomID string, member domain.Member, change Change) {
	if m.onPresence != nil {
		m.onPresence(roomID, member, change)
	}
}

func (m *Manager) ensureRoster(roomID string) *roster {
	ros, ok := m.rosters[roomID]
	if !ok {
		ros = &roster{members: make(map[string]*memberState)}
		m.rosters[roomID] = ros
	}
	return ros
}

// Join installs a member's channel. A known offline member is reactivated
// in place — same memberId, same roster slot — which is the reconnection
// path. A member already online on a different channel gets the older
// channel closed first (single active session per member).
func (m *Manager) Join(roomID string, identity domain.Identity, ch Channel) (*domain.Member, error) {
	if !m.roomExists(roomID) {
		return nil, domain.ErrRoomNotFound
	}

	m.mu.Lock()
	ros := m.ensureRoster(roomID)

	if st, ok := ros.members[identity.MemberID]; ok {
		if st.grace != nil {
			st.grace.Stop()
			st.grace = nil
		}

		var superseded Channel
		if st.channel != nil && st.channel != ch {
			superseded = st.channel
		}

		was := st.member.Presence
		st.channel = ch
		st.member.Presence = domain.PresenceOnline
		member := *st.member
		m.mu.Unlock()

		if superseded != nil {
			m.logger.Infow("superseding active session",
				"roomId", roomID,
				"memberId", member.ID,
			)
			superseded.Close()
		}
		if was == domain.PresenceOffline {
			m.notify(roomID, member, ChangeOnline)
		}

		return &member, nil
	}

	newMember, err := domain.NewMember(identity)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	ros.order = append(ros.order, newMember.ID)
	ros.members[newMember.ID] = &memberState{
		member:  newMember,
		channel: ch,
	}
	member := *newMember
	m.mu.Unlock()

	return &member, nil
}

// MarkReady flips a freshly joined member from connecting to online once
// the gateway has confirmed the channel (snapshot delivered).
func (m *Manager) MarkReady(roomID, memberID string) error {
	m.mu.Lock()
	ros, ok := m.rosters[roomID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	st, ok := ros.members[memberID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrMemberNotFound
	}

	if st.member.Presence != domain.PresenceConnecting {
		m.mu.Unlock()
		return nil
	}

	st.member.Presence = domain.PresenceOnline
	member := *st.member
	m.mu.Unlock()

	m.notify(roomID, member, ChangeJoined)
	return nil
}

// Leave removes a member (explicit) or demotes it to offline with a grace
// timer (timeout). A second timeout for an already-offline member is a
// no-op.
func (m *Manager) Leave(roomID, memberID string, reason Reason) error {
	m.mu.Lock()
	ros, ok := m.rosters[roomID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	st, ok := ros.members[memberID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrMemberNotFound
	}

	if reason == ReasonExplicit {
		m.removeLocked(ros, roomID, memberID)
		ch := st.channel
		member := *st.member
		m.mu.Unlock()

		if ch != nil {
			ch.Close()
		}
		m.notify(roomID, member, ChangeLeft)
		return nil
	}

	if st.member.Presence == domain.PresenceOffline {
		m.mu.Unlock()
		return nil
	}

	st.channel = nil
	st.member.Presence = domain.PresenceOffline
	st.grace = time.AfterFunc(m.grace, func() {
		m.expire(roomID, memberID)
	})
	member := *st.member
	m.mu.Unlock()

	m.notify(roomID, member, ChangeOffline)
	return nil
}

// Disconnect demotes a member to offline only if ch is still its active
// channel. A superseded session reporting its own disconnect must not
// touch the replacement session.
func (m *Manager) Disconnect(roomID, memberID string, ch Channel) error {
	m.mu.Lock()
	ros, ok := m.rosters[roomID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	st, ok := ros.members[memberID]
	if !ok || st.channel != ch {
		m.mu.Unlock()
		return nil
	}

	st.channel = nil
	st.member.Presence = domain.PresenceOffline
	st.grace = time.AfterFunc(m.grace, func() {
		m.expire(roomID, memberID)
	})
	member := *st.member
	m.mu.Unlock()

	m.notify(roomID, member, ChangeOffline)
	return nil
}

// expire fires when the grace window lapses without a reconnect.
func (m *Manager) expire(roomID, memberID string) {
	m.mu.Lock()
	ros, ok := m.rosters[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}
	st, ok := ros.members[memberID]
	if !ok || st.member.Presence != domain.PresenceOffline {
		m.mu.Unlock()
		return
	}

	m.removeLocked(ros, roomID, memberID)
	member := *st.member
	m.mu.Unlock()

	m.logger.Infow("member grace window expired",
		"roomId", roomID,
		"memberId", memberID,
	)
	m.notify(roomID, member, ChangeLeft)
}

func (m *Manager) removeLocked(ros *roster, roomID, memberID string) {
	st, ok := ros.members[memberID]
	if !ok {
		return
	}
	if st.grace != nil {
		st.grace.Stop()
		st.grace = nil
	}

	delete(ros.members, memberID)
	for i, id := range ros.order {
		if id == memberID {
			ros.order = append(ros.order[:i], ros.order[i+1:]...)
			break
		}
	}

	if len(ros.members) == 0 {
		delete(m.rosters, roomID)
	}
}

// ListMembers returns members in insertion order.
func (m *Manager) ListMembers(roomID string) []domain.Member {
	m.mu.Lock()
	defer m.mu.Unlock()

	ros, ok := m.rosters[roomID]
	if !ok {
		return []domain.Member{}
	}

	members := make([]domain.Member, 0, len(ros.order))
	for _, id := range ros.order {
		if st, ok := ros.members[id]; ok {
			members = append(members, *st.member)
		}
	}
	return members
}

// Recipients resolves the online fan-out set, optionally excluding the
// originator.
func (m *Manager) Recipients(roomID, exclude string) []Recipient {
	m.mu.Lock()
	defer m.mu.Unlock()

	ros, ok := m.rosters[roomID]
	if !ok {
		return nil
	}

	recipients := make([]Recipient, 0, len(ros.order))
	for _, id := range ros.order {
		if id == exclude {
			continue
		}
		st, ok := ros.members[id]
		if !ok || st.channel == nil || st.member.Presence != domain.PresenceOnline {
			continue
		}
		recipients = append(recipients, Recipient{MemberID: id, Channel: st.channel})
	}
	return recipients
}

func (m *Manager) OnlineCount(roomID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ros, ok := m.rosters[roomID]
	if !ok {
		return 0
	}

	count := 0
	for _, st := range ros.members {
		if st.member.Presence == domain.PresenceOnline {
			count++
		}
	}
	return count
}

func (m *Manager) MemberCount(roomID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ros, ok := m.rosters[roomID]
	if !ok {
		return 0
	}
	return len(ros.members)
}

// DropRoom tears down a roster when its room is evicted. Channels are
// closed without individual leave notifications; the room is gone.
func (m *Manager) DropRoom(roomID string) {
	m.mu.Lock()
	ros, ok := m.rosters[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.rosters, roomID)

	channels := make([]Channel, 0, len(ros.members))
	for _, st := range ros.members {
		if st.grace != nil {
			st.grace.Stop()
		}
		if st.channel != nil {
			channels = append(channels, st.channel)
		}
	}
	m.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}
}
