package media

import (
	"context"
	"os"
	"time"
)

// Event is delivered on a Player's event channel.
type Event struct {
	Type EventType
	// Err is set for EventError
	Err error
}

// Player abstracts a single audio output element. Implementations must be
// safe for concurrent use; Events delivery must never block the producer
// (late consumers lose events rather than stalling playback).
type Player interface {
	// Load assigns a new source and prepares it for playback. The prior
	// source, if any, is discarded.
	Load(ctx context.Context, uri string) error
	Play() error
	Pause()
	// Stop pauses and rewinds to the start
	Stop()
	Seek(pos time.Duration)
	Position() time.Duration
	// Duration returns 0 while unknown
	Duration() time.Duration
	SetVolume(v float64)
	Volume() float64
	Events() <-chan Event
	// Reset clears the source and returns the element to the empty state
	Reset()
	Close() error
}

// Capabilities reports what the audio backend supports.
type Capabilities struct {
	// GraphSupported is true when gain-node routing is available; when
	// false the engine falls back to direct per-element volume control.
	GraphSupported bool
}

// DetectCapabilities probes the audio backend once at startup. The gain
// graph can be disabled explicitly for hosts where it misbehaves.
func DetectCapabilities() Capabilities {
	if os.Getenv("AURALIS_DISABLE_AUDIO_GRAPH") != "" {
		return Capabilities{GraphSupported: false}
	}
	return Capabilities{GraphSupported: true}
}
