// Package playback owns the two-channel playback engine and the crossfade
// scheduler that hands playback from one channel to the other near the end
// of each track.
package playback

import (
	"context"
	"time"

	"github.com/auralis/auralis-go/internal/source"
)

// Track is the engine's view of a queue entry.
type Track struct {
	ID         string
	Title      string
	Artist     string
	Album      string
	Duration   time.Duration
	ArtworkURL string
}

// TrackQueue supplies tracks to the engine. PeekNext must not consume;
// Advance consumes and returns the new current track, nil at queue end.
type TrackQueue interface {
	Current() *Track
	PeekNext() *Track
	Advance() *Track
}

// SourceResolver maps track ids onto playable references.
type SourceResolver interface {
	Resolve(ctx context.Context, trackID string) (*source.Reference, error)
}

// Role identifies one of the engine's two channels.
type Role int

const (
	RolePrimary Role = iota
	RoleSecondary
)

func (r Role) other() Role {
	if r == RolePrimary {
		return RoleSecondary
	}
	return RolePrimary
}

// String returns the role name for logging
func (r Role) String() string {
	if r == RolePrimary {
		return "primary"
	}
	return "secondary"
}

// Mode selects how channel volume is controlled. Fixed at construction.
type Mode int

const (
	// ModeGraph routes channels through gain nodes; crossfades ramp gains
	ModeGraph Mode = iota
	// ModeDirect sets per-channel volume each scheduler tick
	ModeDirect
)

// String returns the mode name for logging
func (m Mode) String() string {
	if m == ModeGraph {
		return "graph"
	}
	return "direct"
}

// EventType identifies an engine notification.
type EventType int

const (
	// EventTrackChanged fires when a different track becomes current
	EventTrackChanged EventType = iota
	// EventPlaying fires when playback starts or resumes
	EventPlaying
	// EventPaused fires when playback pauses, including autoplay denial
	EventPaused
	// EventQueueEnded fires when the last track finishes
	EventQueueEnded
	// EventTrackError fires when the active channel errors without a skip
	EventTrackError
)

// Event is delivered on the engine's notification channel.
type Event struct {
	Type  EventType
	Track *Track
	Err   error
}
