package registry

import (
	"context"
	"sync"
	"time"

	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/logging"
	"github.com/syncstream/syncstream/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Bounded retry for id collisions. With a 31-char alphabet and 10-char ids
// the loop practically never runs twice.
const maxCreateAttempts = 8

// OnlineCounter reports how many members of a room are currently online.
// Provided by the membership manager at wiring time.
type OnlineCounter func(roomID string) int

// EvictHook runs after a room has been removed, outside the registry lock.
type EvictHook func(roomID string)

// ExpireHook runs for each room removed by the idle sweep, after the evict
// hooks. Explicit deletion does not fire it.
type ExpireHook func(roomID string)

// Registry is the only globally shared mutable structure: a map of live
// rooms plus their last-activity times. The registry lock guards the map
// itself; each room's playback state carries its own lock.
type Registry struct {
	mu           sync.RWMutex
	rooms        map[string]*domain.Room
	lastActivity map[string]time.Time

	idleExpiry  time.Duration
	onlineCount OnlineCounter
	evictHooks  []EvictHook
	expireHooks []ExpireHook

	logger *zap.SugaredLogger
}

func New(idleExpiry time.Duration, logger *zap.SugaredLogger) *Registry {
	if idleExpiry == 0 {
		idleExpiry = 5 * time.Minute
	}

	return &Registry{
		rooms:        make(map[string]*domain.Room),
		lastActivity: make(map[string]time.Time),
		idleExpiry:   idleExpiry,
		onlineCount:  func(string) int { return 0 },
		logger:       logger,
	}
}

// SetOnlineCounter breaks the construction cycle between registry and
// membership manager; call once during wiring, before Run.
func (r *Registry) SetOnlineCounter(fn OnlineCounter) {
	if fn != nil {
		r.onlineCount = fn
	}
}

func (r *Registry) AddEvictHook(fn EvictHook) {
	r.evictHooks = append(r.evictHooks, fn)
}

func (r *Registry) AddExpireHook(fn ExpireHook) {
	r.expireHooks = append(r.expireHooks, fn)
}

// Create registers a new room under a freshly generated id, retrying on the
// (practically unreachable) live collision.
func (r *Registry) Create(videoRef string) (*domain.Room, error) {
	if videoRef == "" {
		return nil, domain.ErrInvalidInput
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		id, err := domain.GenerateRoomID()
		if err != nil {
			return nil, err
		}

		room, err := domain.NewRoom(id, videoRef)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		if _, exists := r.rooms[id]; exists {
			r.mu.Unlock()
			continue
		}
		r.rooms[id] = room
		r.lastActivity[id] = time.Now()
		size := len(r.rooms)
		r.mu.Unlock()

		metrics.RoomsCreated.Inc()
		metrics.RoomsActive.Set(float64(size))

		return room, nil
	}

	return nil, domain.ErrRegistryExhausted
}

func (r *Registry) Get(roomID string) (*domain.Room, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	room, exists := r.rooms[roomID]
	r.mu.RUnlock()
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	return room, nil
}

func (r *Registry) Exists(roomID string) bool {
	r.mu.RLock()
	_, exists := r.rooms[roomID]
	r.mu.RUnlock()
	return exists
}

// Touch marks the room active, deferring idle expiry.
func (r *Registry) Touch(roomID string) {
	r.mu.Lock()
	if _, exists := r.rooms[roomID]; exists {
		r.lastActivity[roomID] = time.Now()
	}
	r.mu.Unlock()
}

// Delete removes a room permanently. Deleted ids are never reused: ids are
// random and the registry keeps no free-list.
func (r *Registry) Delete(roomID string) error {
	r.mu.Lock()
	_, exists := r.rooms[roomID]
	if !exists {
		r.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	delete(r.rooms, roomID)
	delete(r.lastActivity, roomID)
	size := len(r.rooms)
	r.mu.Unlock()

	metrics.RoomsActive.Set(float64(size))

	for _, hook := range r.evictHooks {
		hook(roomID)
	}

	return nil
}

// Restore re-registers a room rebuilt from a persisted snapshot under its
// original id. If the id is live again the existing room wins.
func (r *Registry) Restore(snapshot *domain.RoomSnapshot) (*domain.Room, error) {
	room, err := domain.RestoreRoom(snapshot, time.Now())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.rooms[room.ID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.rooms[room.ID] = room
	r.lastActivity[room.ID] = time.Now()
	size := len(r.rooms)
	r.mu.Unlock()

	metrics.RoomsActive.Set(float64(size))

	return room, nil
}

// Rooms returns the current rooms; used by the snapshotter.
func (r *Registry) Rooms() []*domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// SweepExpired deletes rooms that have been idle past the grace period and
// have no online member. Returns the ids removed.
func (r *Registry) SweepExpired() []string {
	cutoff := time.Now().Add(-r.idleExpiry)

	r.mu.Lock()
	var expired []string
	for id, last := range r.lastActivity {
		if last.Before(cutoff) && r.onlineCount(id) == 0 {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.rooms, id)
		delete(r.lastActivity, id)
	}
	size := len(r.rooms)
	r.mu.Unlock()

	if len(expired) > 0 {
		metrics.RoomsExpired.Add(float64(len(expired)))
		metrics.RoomsActive.Set(float64(size))

		for _, id := range expired {
			r.logger.Infow("room expired",
				string(logging.RoomId), id,
			)
			for _, hook := range r.evictHooks {
				hook(id)
			}
			for _, hook := range r.expireHooks {
				hook(id)
			}
		}
	}

	return expired
}

// Run sweeps on a ticker until the context is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.SweepExpired()
		case <-ctx.Done():
			return
		}
	}
}
