package playback

import (
	"context"
	"sync"
	"time"

	"github.com/auralis/auralis-go/internal/config"
	apperrors "github.com/auralis/auralis-go/internal/errors"
	"github.com/auralis/auralis-go/internal/media"
	"github.com/auralis/auralis-go/internal/monitoring"
	"github.com/auralis/auralis-go/internal/source"
	"go.uber.org/zap"
)

// channel pairs a media player with the crossfade gain node and the source
// reference currently assigned to it. The struct identity is fixed; which
// channel is "current" is tracked on the engine and flips on crossfade.
type channel struct {
	player media.Player
	gain   *media.GainNode
	ref    *source.Reference
	track  *Track
}

// Engine is the two-channel playback engine. Exactly one channel is current
// at any time; the other exists to preload and fade in the next track.
type Engine struct {
	resolver SourceResolver
	queue    TrackQueue
	logger   *zap.Logger
	mode     Mode
	graph    *media.Graph

	mu              sync.Mutex
	channels        [2]*channel
	current         Role
	playing         bool
	volume          float64
	queueTransition bool
	loadToken       uint64
	fadeDur         time.Duration
	lookahead       time.Duration
	preloadTimeout  time.Duration
	tickInterval    time.Duration
	xfade           crossfadeState
	errTrackID      string
	errCount        int

	events  chan Event
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewEngine builds an engine over two players. The control mode is decided
// once from the detected capabilities and never changes afterwards.
func NewEngine(cfg config.PlaybackConfig, resolver SourceResolver, queue TrackQueue, players [2]media.Player, caps media.Capabilities, logger *zap.Logger) *Engine {
	e := &Engine{
		resolver:       resolver,
		queue:          queue,
		logger:         logger,
		volume:         1.0,
		fadeDur:        time.Duration(cfg.CrossfadeSeconds * float64(time.Second)),
		lookahead:      time.Duration(cfg.LookaheadSeconds * float64(time.Second)),
		preloadTimeout: time.Duration(cfg.PreloadTimeoutSec) * time.Second,
		tickInterval:   time.Duration(cfg.TickMillis) * time.Millisecond,
		events:         make(chan Event, 32),
		stopCh:         make(chan struct{}),
	}
	if e.preloadTimeout <= 0 {
		e.preloadTimeout = 10 * time.Second
	}
	if e.tickInterval <= 0 {
		e.tickInterval = 250 * time.Millisecond
	}

	if caps.GraphSupported {
		e.mode = ModeGraph
		e.graph = media.NewGraph()
		e.channels[RolePrimary] = &channel{player: players[RolePrimary], gain: e.graph.CreateGain()}
		e.channels[RoleSecondary] = &channel{player: players[RoleSecondary], gain: e.graph.CreateGain()}
		e.channels[RoleSecondary].gain.SetValue(0)
	} else {
		e.mode = ModeDirect
		e.channels[RolePrimary] = &channel{player: players[RolePrimary]}
		e.channels[RoleSecondary] = &channel{player: players[RoleSecondary]}
		players[RoleSecondary].SetVolume(0)
	}
	return e
}

// Start launches the crossfade scheduler and the player event pumps
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	e.wg.Add(3)
	go e.runScheduler()
	go e.pumpEvents(RolePrimary)
	go e.pumpEvents(RoleSecondary)
}

// Close stops the scheduler, releases source references and closes both
// players. The engine cannot be restarted.
func (e *Engine) Close() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	close(e.stopCh)
	e.wg.Wait()

	e.mu.Lock()
	e.cancelCrossfadeLocked("shutdown")
	for _, ch := range e.channels {
		if ch.ref != nil {
			if err := ch.ref.Release(); err != nil {
				e.logger.Warn("failed to release source reference", zap.Error(err))
			}
			ch.ref = nil
		}
		ch.player.Close()
	}
	e.mu.Unlock()
	return nil
}

// Events returns the engine's notification channel
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Mode returns the volume control mode fixed at construction
func (e *Engine) Mode() Mode {
	return e.mode
}

// LoadTrack makes track current on the active channel. Loading the track
// that is already current is a no-op, as is loading during an active
// crossfade; the crossfade owns the transition in that window.
func (e *Engine) LoadTrack(ctx context.Context, track *Track) error {
	if track == nil || track.ID == "" {
		return apperrors.NewValidationError("track cannot be empty")
	}

	e.mu.Lock()
	if e.xfade.phase == fadeCrossfading {
		e.mu.Unlock()
		return nil
	}
	cur := e.channels[e.current]
	if cur.track != nil && cur.track.ID == track.ID {
		e.mu.Unlock()
		return nil
	}
	e.cancelCrossfadeLocked("new load")
	e.loadToken++
	token := e.loadToken
	e.queueTransition = true
	oldRef := cur.ref
	cur.ref = nil
	player := cur.player
	e.mu.Unlock()

	if oldRef != nil {
		if err := oldRef.Release(); err != nil {
			e.logger.Warn("failed to release source reference",
				zap.String("track_id", track.ID),
				zap.Error(err))
		}
	}

	lctx, cancel := context.WithTimeout(ctx, e.preloadTimeout)
	defer cancel()

	ref, err := e.resolver.Resolve(lctx, track.ID)
	if err == nil {
		if loadErr := player.Load(lctx, ref.URI); loadErr != nil {
			if relErr := ref.Release(); relErr != nil {
				e.logger.Warn("failed to release source reference", zap.Error(relErr))
			}
			err = loadErr
		}
	}

	e.mu.Lock()
	if e.loadToken != token {
		// A newer load superseded this one while it was in flight
		e.mu.Unlock()
		if err == nil {
			if relErr := ref.Release(); relErr != nil {
				e.logger.Warn("failed to release stale source reference", zap.Error(relErr))
			}
		}
		return nil
	}
	if err != nil {
		e.queueTransition = false
		e.mu.Unlock()
		return err
	}
	cur.ref = ref
	cur.track = track
	e.errTrackID = track.ID
	e.errCount = 0
	e.queueTransition = false
	shouldPlay := e.playing
	e.mu.Unlock()

	e.emit(Event{Type: EventTrackChanged, Track: track})
	monitoring.RecordTrackPlayed(sourceLabel(ref))

	if shouldPlay {
		if playErr := player.Play(); playErr != nil {
			e.mu.Lock()
			e.playing = false
			e.mu.Unlock()
			e.logger.Warn("autostart denied after load",
				zap.String("track_id", track.ID),
				zap.Error(playErr))
			e.emit(Event{Type: EventPaused, Track: track})
		} else {
			e.emit(Event{Type: EventPlaying, Track: track})
		}
	}
	return nil
}

// Play starts or resumes playback of the current track
func (e *Engine) Play() error {
	e.mu.Lock()
	if e.mode == ModeGraph && e.graph.Suspended() {
		e.graph.Resume()
	}
	cur := e.channels[e.current]
	if cur.track == nil {
		e.mu.Unlock()
		return apperrors.NewValidationError("no track loaded")
	}
	player := cur.player
	track := cur.track
	e.playing = true
	e.mu.Unlock()

	if err := player.Play(); err != nil {
		// Autoplay denial surfaces as paused state rather than an error loop
		e.mu.Lock()
		e.playing = false
		e.mu.Unlock()
		e.emit(Event{Type: EventPaused, Track: track})
		return apperrors.NewPermissionError("playback not permitted", err)
	}
	e.emit(Event{Type: EventPlaying, Track: track})
	return nil
}

// Pause pauses playback, cancelling any crossfade in progress
func (e *Engine) Pause() {
	e.mu.Lock()
	e.playing = false
	if e.xfade.phase == fadeCrossfading {
		e.cancelCrossfadeLocked("paused")
	}
	cur := e.channels[e.current]
	track := cur.track
	cur.player.Pause()
	e.mu.Unlock()
	e.emit(Event{Type: EventPaused, Track: track})
}

// Seek moves the current track position. Seeking away from the track end
// cancels an active crossfade; the scheduler re-arms it naturally if the
// position drifts back into the fade window.
func (e *Engine) Seek(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.channels[e.current]
	if e.xfade.phase == fadeCrossfading {
		dur := cur.player.Duration()
		if dur > 0 && dur-pos > e.fadeDur+time.Second {
			e.cancelCrossfadeLocked("seek away from track end")
		}
	}
	cur.player.Seek(pos)
}

// SetVolume sets the user volume in [0,1]. Graph mode routes it through
// the master gain so crossfade ramps are unaffected; direct mode applies
// it to the playing channels.
func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
	if e.mode == ModeGraph {
		e.graph.Master().SetValue(v)
		return
	}
	if e.xfade.phase != fadeCrossfading {
		e.channels[e.current].player.SetVolume(v)
		e.channels[e.current.other()].player.SetVolume(0)
	}
	// During a direct-mode fade the next tick rescales both channels
}

// Volume returns the user volume
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// SetCrossfadeDuration changes the fade length for subsequent transitions
func (e *Engine) SetCrossfadeDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fadeDur = d
}

// Position returns the current track position
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels[e.current].player.Position()
}

// Duration returns the current track duration, 0 while unknown
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels[e.current].player.Duration()
}

// CurrentTrack returns the track on the current channel, nil when empty
func (e *Engine) CurrentTrack() *Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels[e.current].track
}

// IsPlaying reports the engine-level playing intent
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// pumpEvents forwards one player's events into the engine. The role names
// the fixed channel slot, not whichever channel is current.
func (e *Engine) pumpEvents(slot Role) {
	defer e.wg.Done()
	ch := e.channels[slot]
	for {
		select {
		case <-e.stopCh:
			return
		case ev, ok := <-ch.player.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case media.EventEnded:
				e.handleEnded(ch)
			case media.EventError:
				e.handleError(ch, ev.Err)
			}
		}
	}
}

// handleEnded reacts to a track playing to completion. Ends on the
// inactive channel and ends during a queue transition are ignored.
func (e *Engine) handleEnded(ch *channel) {
	e.mu.Lock()
	if e.channels[e.current] != ch || e.queueTransition {
		e.mu.Unlock()
		return
	}

	switch e.xfade.phase {
	case fadeCrossfading:
		// The old track ran out mid-fade; complete the handoff now
		e.finishFadeLocked()
		e.mu.Unlock()
		return
	case fadeReady:
		// Preloaded but the fade window was missed; switch gaplessly
		inactive := e.channels[e.current.other()]
		if err := inactive.player.Play(); err == nil {
			e.finishFadeLocked()
			e.mu.Unlock()
			return
		}
		e.cancelCrossfadeLocked("gapless switch failed")
	}

	next := e.queue.Advance()
	if next == nil {
		e.playing = false
		e.mu.Unlock()
		e.emit(Event{Type: EventQueueEnded})
		return
	}
	e.mu.Unlock()

	go func() {
		if err := e.LoadTrack(context.Background(), next); err != nil {
			e.logger.Warn("failed to load next track after end",
				zap.String("track_id", next.ID),
				zap.Error(err))
		}
	}()
}

// handleError applies the consecutive-error policy: three errors on the
// same track skip it; fewer pause and surface. Inactive channel errors
// only abort a pending preload.
func (e *Engine) handleError(ch *channel, cause error) {
	e.mu.Lock()
	if e.channels[e.current] != ch {
		if e.xfade.phase == fadePreloading || e.xfade.phase == fadeReady {
			e.cancelCrossfadeLocked("inactive channel error")
			monitoring.RecordPreloadFailure()
		}
		e.mu.Unlock()
		return
	}
	track := ch.track
	if track == nil {
		e.mu.Unlock()
		return
	}
	if e.errTrackID == track.ID {
		e.errCount++
	} else {
		e.errTrackID = track.ID
		e.errCount = 1
	}
	count := e.errCount
	e.mu.Unlock()

	monitoring.RecordError("decode")
	e.logger.Warn("playback error on current track",
		zap.String("track_id", track.ID),
		zap.Int("consecutive", count),
		zap.Error(cause))

	if count >= 3 {
		monitoring.RecordTrackSkip()
		e.mu.Lock()
		e.errCount = 0
		next := e.queue.Advance()
		e.mu.Unlock()
		if next == nil {
			e.mu.Lock()
			e.playing = false
			e.mu.Unlock()
			e.emit(Event{Type: EventQueueEnded})
			return
		}
		go func() {
			if err := e.LoadTrack(context.Background(), next); err != nil {
				e.logger.Warn("failed to load next track after skip",
					zap.String("track_id", next.ID),
					zap.Error(err))
			}
		}()
		return
	}

	e.mu.Lock()
	e.playing = false
	ch.player.Pause()
	e.mu.Unlock()
	e.emit(Event{Type: EventTrackError, Track: track, Err: cause})
	e.emit(Event{Type: EventPaused, Track: track})
}

// emit delivers a notification without blocking; slow consumers lose events
func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

func sourceLabel(ref *source.Reference) string {
	if ref.Owned {
		return "offline"
	}
	return "stream"
}
