package playback

import (
	"context"
	"time"

	"github.com/auralis/auralis-go/internal/monitoring"
	"go.uber.org/zap"
)

// fadeEpsilon is the floor for the fade trigger window so a zero-duration
// (gapless) crossfade still fires before the track runs out.
const fadeEpsilon = 50 * time.Millisecond

type fadePhase int

const (
	fadeIdle fadePhase = iota
	fadePreloading
	fadeReady
	fadeCrossfading
)

// crossfadeState is the single in-flight transition. At most one exists;
// clearing the struct returns the scheduler to idle.
type crossfadeState struct {
	phase         fadePhase
	next          *Track
	startedAt     time.Time
	duration      time.Duration
	cancelPreload context.CancelFunc
	// skipTrackID suppresses preload retries for a track that just failed
	skipTrackID string
}

// shouldPreload reports whether the next track should start loading.
// Preload leads the fade by the lookahead so the fade never waits on I/O.
func shouldPreload(remaining, fadeDur, lookahead time.Duration) bool {
	return remaining > 0 && remaining <= fadeDur+lookahead
}

// shouldBeginFade reports whether the handoff itself should start
func shouldBeginFade(remaining, fadeDur time.Duration) bool {
	if fadeDur < fadeEpsilon {
		fadeDur = fadeEpsilon
	}
	return remaining > 0 && remaining <= fadeDur
}

// runScheduler drives crossfades on a fixed tick, independent of any
// player callback cadence.
func (e *Engine) runScheduler() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick evaluates the crossfade state machine once
func (e *Engine) tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.playing || e.queueTransition {
		return
	}
	cur := e.channels[e.current]
	if cur.track == nil {
		return
	}
	dur := cur.player.Duration()
	if dur <= 0 {
		return
	}
	remaining := dur - cur.player.Position()

	switch e.xfade.phase {
	case fadeIdle:
		if !shouldPreload(remaining, e.fadeDur, e.lookahead) {
			return
		}
		next := e.queue.PeekNext()
		if next == nil || next.ID == e.xfade.skipTrackID {
			return
		}
		e.beginPreloadLocked(next)
	case fadeReady:
		if shouldBeginFade(remaining, e.fadeDur) {
			e.beginFadeLocked()
		}
	case fadeCrossfading:
		e.stepFadeLocked()
	}
}

// beginPreloadLocked starts loading next into the inactive channel.
// The load runs off-lock; the captured token invalidates it if a user
// load supersedes the transition meanwhile.
func (e *Engine) beginPreloadLocked(next *Track) {
	ctx, cancel := context.WithTimeout(context.Background(), e.preloadTimeout)
	e.xfade = crossfadeState{
		phase:         fadePreloading,
		next:          next,
		cancelPreload: cancel,
	}
	token := e.loadToken
	inactive := e.channels[e.current.other()]

	go func() {
		defer cancel()
		ref, err := e.resolver.Resolve(ctx, next.ID)
		if err == nil {
			if loadErr := inactive.player.Load(ctx, ref.URI); loadErr != nil {
				if relErr := ref.Release(); relErr != nil {
					e.logger.Warn("failed to release source reference", zap.Error(relErr))
				}
				err = loadErr
			}
		}

		e.mu.Lock()
		stale := e.loadToken != token ||
			e.xfade.phase != fadePreloading ||
			e.xfade.next == nil || e.xfade.next.ID != next.ID
		if stale {
			e.mu.Unlock()
			if err == nil {
				if relErr := ref.Release(); relErr != nil {
					e.logger.Warn("failed to release stale source reference", zap.Error(relErr))
				}
			}
			return
		}
		if err != nil {
			// Preload failure never disturbs current playback
			e.xfade = crossfadeState{skipTrackID: next.ID}
			e.mu.Unlock()
			monitoring.RecordPreloadFailure()
			e.logger.Warn("preload failed, continuing without crossfade",
				zap.String("track_id", next.ID),
				zap.Error(err))
			return
		}
		inactive.ref = ref
		inactive.track = next
		e.xfade.phase = fadeReady
		e.xfade.cancelPreload = nil
		e.mu.Unlock()

		e.logger.Debug("next track preloaded",
			zap.String("track_id", next.ID))
	}()
}

// beginFadeLocked starts the audible handoff from the current channel to
// the preloaded one.
func (e *Engine) beginFadeLocked() {
	cur := e.channels[e.current]
	inactive := e.channels[e.current.other()]

	if err := inactive.player.Play(); err != nil {
		e.logger.Warn("could not start preloaded channel, aborting crossfade",
			zap.Error(err))
		monitoring.RecordCrossfade("aborted")
		e.cancelCrossfadeLocked("secondary start failed")
		return
	}

	e.xfade.phase = fadeCrossfading
	e.xfade.startedAt = time.Now()
	e.xfade.duration = e.fadeDur

	if e.mode == ModeGraph {
		cur.gain.RampTo(0, e.fadeDur)
		inactive.gain.RampTo(1, e.fadeDur)
	} else {
		inactive.player.SetVolume(0)
	}

	if e.fadeDur <= 0 {
		e.finishFadeLocked()
	}
}

// stepFadeLocked advances a fade one tick. Graph mode only watches the
// clock since the gain nodes ramp on their own; direct mode interpolates
// both channel volumes here.
func (e *Engine) stepFadeLocked() {
	elapsed := time.Since(e.xfade.startedAt)
	done := e.xfade.duration <= 0 || elapsed >= e.xfade.duration

	if e.mode == ModeDirect {
		frac := 1.0
		if !done {
			frac = float64(elapsed) / float64(e.xfade.duration)
		}
		cur := e.channels[e.current]
		inactive := e.channels[e.current.other()]
		cur.player.SetVolume((1 - frac) * e.volume)
		inactive.player.SetVolume(frac * e.volume)
	}

	if done {
		e.finishFadeLocked()
	}
}

// finishFadeLocked completes the handoff: the old channel is silenced and
// reset, its source reference released exactly once, and the roles flip
// atomically with clearing the crossfade state.
func (e *Engine) finishFadeLocked() {
	old := e.channels[e.current]
	next := e.channels[e.current.other()]

	oldRef := old.ref
	old.ref = nil
	old.track = nil
	old.player.Stop()
	old.player.Reset()

	if e.mode == ModeGraph {
		old.gain.SetValue(0)
		next.gain.SetValue(1)
	} else {
		old.player.SetVolume(0)
		next.player.SetVolume(e.volume)
	}

	e.current = e.current.other()
	e.xfade = crossfadeState{}
	if next.track != nil {
		e.errTrackID = next.track.ID
		e.errCount = 0
	}
	// Keep the queue cursor aligned with the channel flip
	e.queue.Advance()

	if oldRef != nil {
		if err := oldRef.Release(); err != nil {
			e.logger.Warn("failed to release source reference", zap.Error(err))
		}
	}

	monitoring.RecordCrossfade("completed")
	if next.ref != nil {
		monitoring.RecordTrackPlayed(sourceLabel(next.ref))
	}
	e.emit(Event{Type: EventTrackChanged, Track: next.track})
}

// cancelCrossfadeLocked abandons any in-flight transition and restores the
// current channel to full volume. Safe to call from any phase.
func (e *Engine) cancelCrossfadeLocked(reason string) {
	switch e.xfade.phase {
	case fadeIdle:
		return
	case fadePreloading:
		if e.xfade.cancelPreload != nil {
			e.xfade.cancelPreload()
		}
		// The preload goroutine sees the cleared state and releases its ref
		e.xfade = crossfadeState{}
		return
	}

	wasFading := e.xfade.phase == fadeCrossfading
	cur := e.channels[e.current]
	inactive := e.channels[e.current.other()]

	if e.mode == ModeGraph {
		cur.gain.SetValue(1)
		inactive.gain.SetValue(0)
	} else {
		cur.player.SetVolume(e.volume)
		inactive.player.SetVolume(0)
	}

	inactive.player.Stop()
	inactive.player.Reset()
	inactive.track = nil
	if ref := inactive.ref; ref != nil {
		inactive.ref = nil
		if err := ref.Release(); err != nil {
			e.logger.Warn("failed to release source reference", zap.Error(err))
		}
	}

	e.xfade = crossfadeState{}
	if wasFading {
		monitoring.RecordCrossfade("cancelled")
		e.logger.Debug("crossfade cancelled", zap.String("reason", reason))
	}
}
