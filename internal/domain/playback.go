package domain

import "time"

type IntentKind string

const (
	IntentPlay  IntentKind = "play"
	IntentPause IntentKind = "pause"
	IntentSeek  IntentKind = "seek"
)

// Intent is a client request to change playback, distinct from the
// authoritative state it produces. ClientTimestamp is the client's send time
// and is used only to estimate one-way network delay.
type Intent struct {
	Kind            IntentKind `json:"kind"`
	PositionSeconds float64    `json:"positionSeconds,omitempty"`
	ClientTimestamp time.Time  `json:"clientTimestamp"`
}

// PlaybackState is the authoritative playback position of a room. Revision
// increases by exactly one per accepted intent; consumers drop deliveries
// whose revision is not greater than the last one they saw.
type PlaybackState struct {
	PositionSeconds float64   `json:"positionSeconds"`
	IsPlaying       bool      `json:"isPlaying"`
	LastUpdatedAt   time.Time `json:"lastUpdatedAt"`
	Revision        int64     `json:"revision"`
}

func NewPlaybackState(now time.Time) PlaybackState {
	return PlaybackState{
		PositionSeconds: 0,
		IsPlaying:       false,
		LastUpdatedAt:   now,
		Revision:        0,
	}
}

// PositionAt extrapolates the position to the given server time while
// playing; a paused state holds its position.
func (s PlaybackState) PositionAt(now time.Time) float64 {
	if !s.IsPlaying {
		return s.PositionSeconds
	}

	elapsed := now.Sub(s.LastUpdatedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	return s.PositionSeconds + elapsed
}

// At returns the state re-anchored to now with the same revision.
func (s PlaybackState) At(now time.Time) PlaybackState {
	s.PositionSeconds = s.PositionAt(now)
	s.LastUpdatedAt = now
	return s
}

// Apply computes the successor state for an intent. Play and seek
// extrapolate the target position forward by the estimated one-way delay so
// every member starts from a consistent "now". The estimate is clamped to
// [0, maxSkew]; a skewed client clock cannot move the position further than
// that.
func (s PlaybackState) Apply(intent Intent, now time.Time, maxSkew time.Duration) (PlaybackState, error) {
	delay := oneWayDelay(intent.ClientTimestamp, now, maxSkew)
	next := s

	switch intent.Kind {
	case IntentPlay:
		next.PositionSeconds = s.PositionAt(now) + delay.Seconds()
		next.IsPlaying = true
	case IntentPause:
		next.PositionSeconds = s.PositionAt(now)
		next.IsPlaying = false
	case IntentSeek:
		if intent.PositionSeconds < 0 {
			return PlaybackState{}, ErrInvalidIntent
		}
		next.PositionSeconds = intent.PositionSeconds
		if s.IsPlaying {
			next.PositionSeconds += delay.Seconds()
		}
	default:
		return PlaybackState{}, ErrInvalidIntent
	}

	next.LastUpdatedAt = now
	next.Revision = s.Revision + 1

	return next, nil
}

func oneWayDelay(clientTimestamp, now time.Time, maxSkew time.Duration) time.Duration {
	if clientTimestamp.IsZero() {
		return 0
	}

	delay := now.Sub(clientTimestamp)
	if delay < 0 {
		return 0
	}
	if delay > maxSkew {
		return maxSkew
	}

	return delay
}
