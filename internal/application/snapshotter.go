package application

import (
	"context"
	"time"

	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/logging"
	"github.com/syncstream/syncstream/internal/infrastructure/membership"
	"github.com/syncstream/syncstream/internal/infrastructure/registry"
	"go.uber.org/zap"
)

// Snapshotter persists a point-in-time copy of every live room on an
// interval. Persistence is advisory: a failed save is logged and skipped,
// never surfaced to members.
type Snapshotter struct {
	registry *registry.Registry
	members  *membership.Manager
	repo     domain.RoomSnapshotRepository
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewSnapshotter(
	reg *registry.Registry,
	members *membership.Manager,
	repo domain.RoomSnapshotRepository,
	interval time.Duration,
	logger *zap.SugaredLogger,
) *Snapshotter {
	if interval == 0 {
		interval = time.Minute
	}

	return &Snapshotter{
		registry: reg,
		members:  members,
		repo:     repo,
		interval: interval,
		logger:   logger,
	}
}

func (s *Snapshotter) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.persistAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Snapshotter) persistAll(ctx context.Context) {
	now := time.Now().UTC()

	for _, room := range s.registry.Rooms() {
		playback := room.Snapshot(now)

		snapshot := &domain.RoomSnapshot{
			RoomID:          room.ID,
			VideoRef:        room.VideoRef,
			PositionSeconds: playback.PositionSeconds,
			IsPlaying:       playback.IsPlaying,
			Revision:        playback.Revision,
			MemberCount:     s.members.MemberCount(room.ID),
			Timestamp:       now,
		}

		if err := s.repo.Save(ctx, snapshot); err != nil {
			s.logger.Warnw("failed to persist room snapshot",
				"category", logging.Mongo,
				string(logging.RoomId), room.ID,
				"error", err,
			)
		}
	}
}
