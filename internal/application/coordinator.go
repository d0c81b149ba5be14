package application

import (
	"errors"
	"time"

	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/metrics"
	"github.com/syncstream/syncstream/internal/infrastructure/registry"
	"github.com/syncstream/syncstream/internal/infrastructure/ws"
	"go.uber.org/zap"
)

// Coordinator applies playback intents against the authoritative room state
// and fans the result out. The originator is excluded: it already applied
// the change locally and would only double-apply the delay compensation.
type Coordinator struct {
	registry *registry.Registry
	fanout   *Fanout
	maxSkew  time.Duration
	logger   *zap.SugaredLogger
}

func NewCoordinator(reg *registry.Registry, fanout *Fanout, maxSkew time.Duration, logger *zap.SugaredLogger) *Coordinator {
	if maxSkew == 0 {
		maxSkew = 30 * time.Second
	}

	return &Coordinator{
		registry: reg,
		fanout:   fanout,
		maxSkew:  maxSkew,
		logger:   logger,
	}
}

// ApplyIntent validates and applies one intent, bumps the revision, touches
// room activity and broadcasts the new state to everyone but the originator.
func (c *Coordinator) ApplyIntent(roomID, memberID string, intent domain.Intent) (domain.PlaybackState, error) {
	room, err := c.registry.Get(roomID)
	if err != nil {
		return domain.PlaybackState{}, err
	}

	state, err := room.ApplyIntent(intent, time.Now(), c.maxSkew)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidIntent) {
			metrics.IntentsRejected.WithLabelValues("invalid").Inc()
		}
		return domain.PlaybackState{}, err
	}

	metrics.IntentsApplied.WithLabelValues(string(intent.Kind)).Inc()
	c.registry.Touch(roomID)

	c.fanout.Broadcast(roomID, ws.NewPlaybackUpdated(roomID, state), memberID)

	return state, nil
}

// Snapshot returns the playback state extrapolated to now. Joining and
// reconnecting members reconcile against this, not against replayed events.
func (c *Coordinator) Snapshot(roomID string) (domain.PlaybackState, error) {
	room, err := c.registry.Get(roomID)
	if err != nil {
		return domain.PlaybackState{}, err
	}

	return room.Snapshot(time.Now()), nil
}
