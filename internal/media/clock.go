package media

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DurationProbe reports the playable duration of a source URI. The clock
// player needs it up front since it has no decoder of its own.
type DurationProbe func(ctx context.Context, uri string) (time.Duration, error)

// ClockPlayer is a Player driven by the wall clock: position advances in
// real time and Ended fires when it reaches the probed duration. It is the
// backend for headless hosts where the engine, crossfade scheduler and
// media session run without a local audio device.
type ClockPlayer struct {
	probe DurationProbe

	mu       sync.Mutex
	uri      string
	state    State
	duration time.Duration
	volume   float64

	basePos   time.Duration
	startedAt time.Time
	endTimer  *time.Timer

	events chan Event
	closed bool
}

// NewClockPlayer creates a stopped clock player using probe for durations
func NewClockPlayer(probe DurationProbe) *ClockPlayer {
	return &ClockPlayer{
		probe:  probe,
		state:  StateEmpty,
		volume: 1.0,
		events: make(chan Event, 16),
	}
}

// Load assigns a new source, probing its duration
func (p *ClockPlayer) Load(ctx context.Context, uri string) error {
	p.mu.Lock()
	p.stopTimerLocked()
	p.uri = uri
	p.state = StateLoading
	p.basePos = 0
	p.duration = 0
	p.mu.Unlock()
	p.emit(Event{Type: EventLoadStarted})

	dur, err := p.probe(ctx, uri)
	if err != nil {
		p.mu.Lock()
		p.state = StateErrored
		p.mu.Unlock()
		p.emit(Event{Type: EventError, Err: err})
		return fmt.Errorf("failed to probe source: %w", err)
	}

	p.mu.Lock()
	// A newer Load may have replaced the source while probing
	if p.uri != uri {
		p.mu.Unlock()
		return nil
	}
	p.duration = dur
	p.state = StateReady
	p.mu.Unlock()
	p.emit(Event{Type: EventReady})
	return nil
}

// Play starts or resumes playback
func (p *ClockPlayer) Play() error {
	p.mu.Lock()
	next, ok := ApplyEvent(p.state, EventPlay)
	if !ok {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("cannot play from state %s", state)
	}
	p.state = next
	p.startedAt = time.Now()
	p.armTimerLocked()
	p.mu.Unlock()
	p.emit(Event{Type: EventPlay})
	return nil
}

// Pause freezes the position
func (p *ClockPlayer) Pause() {
	p.mu.Lock()
	next, ok := ApplyEvent(p.state, EventPause)
	if !ok {
		p.mu.Unlock()
		return
	}
	p.basePos = p.positionLocked()
	p.state = next
	p.stopTimerLocked()
	p.mu.Unlock()
	p.emit(Event{Type: EventPause})
}

// Stop pauses and rewinds to the start
func (p *ClockPlayer) Stop() {
	p.Pause()
	p.Seek(0)
}

// Seek moves the position, clamped to [0, duration]
func (p *ClockPlayer) Seek(pos time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}
	p.basePos = pos
	if p.state == StatePlaying {
		p.startedAt = time.Now()
		p.armTimerLocked()
	}
}

// Position returns the current playback position
func (p *ClockPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

// Duration returns the probed duration, 0 while unknown
func (p *ClockPlayer) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// SetVolume sets the output volume in [0,1]
func (p *ClockPlayer) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = clampGain(v)
}

// Volume returns the output volume
func (p *ClockPlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Events returns the player's event channel
func (p *ClockPlayer) Events() <-chan Event {
	return p.events
}

// Reset clears the source and returns to the empty state
func (p *ClockPlayer) Reset() {
	p.mu.Lock()
	p.stopTimerLocked()
	p.uri = ""
	p.state = StateEmpty
	p.basePos = 0
	p.duration = 0
	p.mu.Unlock()
	p.emit(Event{Type: EventReset})
}

// Close releases the player. Events are no longer delivered.
func (p *ClockPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimerLocked()
	p.closed = true
	return nil
}

func (p *ClockPlayer) positionLocked() time.Duration {
	pos := p.basePos
	if p.state == StatePlaying {
		pos += time.Since(p.startedAt)
	}
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}
	return pos
}

func (p *ClockPlayer) armTimerLocked() {
	p.stopTimerLocked()
	if p.duration <= 0 {
		return
	}
	remaining := p.duration - p.positionLocked()
	if remaining < 0 {
		remaining = 0
	}
	p.endTimer = time.AfterFunc(remaining, p.onEnded)
}

func (p *ClockPlayer) stopTimerLocked() {
	if p.endTimer != nil {
		p.endTimer.Stop()
		p.endTimer = nil
	}
}

func (p *ClockPlayer) onEnded() {
	p.mu.Lock()
	if p.state != StatePlaying {
		p.mu.Unlock()
		return
	}
	p.basePos = p.duration
	p.state, _ = ApplyEvent(p.state, EventEnded)
	p.endTimer = nil
	p.mu.Unlock()
	p.emit(Event{Type: EventEnded})
}

// emit delivers an event without blocking; slow consumers lose events
func (p *ClockPlayer) emit(ev Event) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	select {
	case p.events <- ev:
	default:
	}
}
