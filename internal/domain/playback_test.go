package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncstream/syncstream/internal/domain"
)

const maxSkew = 30 * time.Second

func TestApply_PlayStartsFromCurrentPosition(t *testing.T) {
	now := time.Now()
	state := domain.NewPlaybackState(now)

	next, err := state.Apply(domain.Intent{
		Kind:            domain.IntentPlay,
		ClientTimestamp: now,
	}, now, maxSkew)

	require.NoError(t, err)
	assert.True(t, next.IsPlaying)
	assert.Equal(t, 0.0, next.PositionSeconds)
	assert.Equal(t, int64(1), next.Revision)
	assert.Equal(t, now, next.LastUpdatedAt)
}

func TestApply_PlayCompensatesOneWayDelay(t *testing.T) {
	now := time.Now()
	state := domain.NewPlaybackState(now)

	// Intent sent 2s ago: the video should start 2s ahead so every member
	// converges on the sender's "now".
	next, err := state.Apply(domain.Intent{
		Kind:            domain.IntentPlay,
		ClientTimestamp: now.Add(-2 * time.Second),
	}, now, maxSkew)

	require.NoError(t, err)
	assert.InDelta(t, 2.0, next.PositionSeconds, 0.001)
}

func TestApply_DelayClampedToMaxSkew(t *testing.T) {
	now := time.Now()
	state := domain.NewPlaybackState(now)

	next, err := state.Apply(domain.Intent{
		Kind:            domain.IntentPlay,
		ClientTimestamp: now.Add(-10 * time.Minute), // badly skewed clock
	}, now, maxSkew)

	require.NoError(t, err)
	assert.InDelta(t, maxSkew.Seconds(), next.PositionSeconds, 0.001)
}

func TestApply_FutureClientTimestampIgnored(t *testing.T) {
	now := time.Now()
	state := domain.NewPlaybackState(now)

	next, err := state.Apply(domain.Intent{
		Kind:            domain.IntentPlay,
		ClientTimestamp: now.Add(5 * time.Second),
	}, now, maxSkew)

	require.NoError(t, err)
	assert.Equal(t, 0.0, next.PositionSeconds)
}

func TestApply_ZeroClientTimestampMeansNoCompensation(t *testing.T) {
	now := time.Now()
	state := domain.NewPlaybackState(now)

	next, err := state.Apply(domain.Intent{Kind: domain.IntentPlay}, now, maxSkew)

	require.NoError(t, err)
	assert.Equal(t, 0.0, next.PositionSeconds)
}

func TestApply_PauseFreezesExtrapolatedPosition(t *testing.T) {
	start := time.Now()
	state := domain.NewPlaybackState(start)

	playing, err := state.Apply(domain.Intent{Kind: domain.IntentPlay, ClientTimestamp: start}, start, maxSkew)
	require.NoError(t, err)

	later := start.Add(10 * time.Second)
	paused, err := playing.Apply(domain.Intent{Kind: domain.IntentPause, ClientTimestamp: later}, later, maxSkew)
	require.NoError(t, err)

	assert.False(t, paused.IsPlaying)
	assert.InDelta(t, 10.0, paused.PositionSeconds, 0.001)
	assert.Equal(t, int64(2), paused.Revision)

	// Position holds while paused.
	assert.InDelta(t, 10.0, paused.PositionAt(later.Add(time.Hour)), 0.001)
}

func TestApply_SeekWhilePausedIsExact(t *testing.T) {
	now := time.Now()
	state := domain.NewPlaybackState(now)

	next, err := state.Apply(domain.Intent{
		Kind:            domain.IntentSeek,
		PositionSeconds: 42.5,
		ClientTimestamp: now.Add(-3 * time.Second),
	}, now, maxSkew)

	require.NoError(t, err)
	assert.False(t, next.IsPlaying)
	// Paused seek does not drift by the network delay.
	assert.Equal(t, 42.5, next.PositionSeconds)
}

func TestApply_SeekWhilePlayingCompensatesDelay(t *testing.T) {
	start := time.Now()
	state := domain.NewPlaybackState(start)

	playing, err := state.Apply(domain.Intent{Kind: domain.IntentPlay, ClientTimestamp: start}, start, maxSkew)
	require.NoError(t, err)

	later := start.Add(time.Second)
	next, err := playing.Apply(domain.Intent{
		Kind:            domain.IntentSeek,
		PositionSeconds: 100,
		ClientTimestamp: later.Add(-2 * time.Second),
	}, later, maxSkew)

	require.NoError(t, err)
	assert.True(t, next.IsPlaying)
	assert.InDelta(t, 102.0, next.PositionSeconds, 0.001)
}

func TestApply_NegativeSeekRejected(t *testing.T) {
	now := time.Now()
	state := domain.NewPlaybackState(now)

	_, err := state.Apply(domain.Intent{
		Kind:            domain.IntentSeek,
		PositionSeconds: -1,
		ClientTimestamp: now,
	}, now, maxSkew)

	assert.ErrorIs(t, err, domain.ErrInvalidIntent)
}

func TestApply_UnknownKindRejected(t *testing.T) {
	now := time.Now()
	state := domain.NewPlaybackState(now)

	_, err := state.Apply(domain.Intent{Kind: "rewind"}, now, maxSkew)

	assert.ErrorIs(t, err, domain.ErrInvalidIntent)
}

func TestApply_RevisionIncreasesByOnePerIntent(t *testing.T) {
	now := time.Now()
	state := domain.NewPlaybackState(now)

	for i := 1; i <= 5; i++ {
		next, err := state.Apply(domain.Intent{Kind: domain.IntentPause, ClientTimestamp: now}, now, maxSkew)
		require.NoError(t, err)
		assert.Equal(t, int64(i), next.Revision)
		state = next
	}
}

func TestAt_ReanchorsWithoutBumpingRevision(t *testing.T) {
	start := time.Now()
	state := domain.NewPlaybackState(start)

	playing, err := state.Apply(domain.Intent{Kind: domain.IntentPlay, ClientTimestamp: start}, start, maxSkew)
	require.NoError(t, err)

	later := start.Add(7 * time.Second)
	snapshot := playing.At(later)

	assert.InDelta(t, 7.0, snapshot.PositionSeconds, 0.001)
	assert.Equal(t, later, snapshot.LastUpdatedAt)
	assert.Equal(t, playing.Revision, snapshot.Revision)
}
