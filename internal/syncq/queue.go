// Package syncq queues user actions taken while offline and replays them
// against the server once connectivity returns.
package syncq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/auralis/auralis-go/internal/config"
	"github.com/auralis/auralis-go/internal/monitoring"
	"github.com/auralis/auralis-go/internal/store"
	"go.uber.org/zap"
)

// Action types understood by the dispatcher
const (
	ActionScrobble     = "scrobble"
	ActionNowPlaying   = "now_playing"
	ActionSetFavorite  = "set_favorite"
	ActionExternalSync = "external_sync"
)

// ScrobblePayload records a completed listen
type ScrobblePayload struct {
	TrackID  string    `json:"track_id"`
	PlayedAt time.Time `json:"played_at"`
}

// NowPlayingPayload records the track that was playing
type NowPlayingPayload struct {
	TrackID string `json:"track_id"`
}

// FavoritePayload records a favorite toggle
type FavoritePayload struct {
	TrackID  string `json:"track_id"`
	Favorite bool   `json:"favorite"`
}

// ActionAPI is the slice of the server client the queue replays against.
type ActionAPI interface {
	Scrobble(ctx context.Context, trackID string, playedAt time.Time) error
	ReportNowPlaying(ctx context.Context, trackID string) error
	SetFavorite(ctx context.Context, trackID string, favorite bool) error
	TriggerExternalSync(ctx context.Context) error
}

// ProfileProvider reports the active user profile. Actions are tagged with
// it so a profile switch does not replay another user's actions.
type ProfileProvider interface {
	ActiveProfileID() string
}

// Queue is the action sync queue. QueueAction never fails the caller: the
// local mutation has already been applied optimistically, so persistence
// problems degrade to a logged warning.
type Queue struct {
	store      store.ActionStore
	api        ActionAPI
	profiles   ProfileProvider
	logger     *zap.Logger
	maxRetries int

	// processMu ensures a single replay pass at a time
	processMu sync.Mutex
}

// NewQueue creates the action queue
func NewQueue(st store.ActionStore, api ActionAPI, profiles ProfileProvider, cfg config.SyncConfig, logger *zap.Logger) *Queue {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &Queue{
		store:      st,
		api:        api,
		profiles:   profiles,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// QueueAction appends an action for later replay. With no active profile
// the action is dropped with a warning; the caller's optimistic update
// stands either way. The store may be the in-memory fallback, in which
// case queued actions simply do not survive a restart.
func (q *Queue) QueueAction(actionType string, payload interface{}) {
	profileID := q.profiles.ActiveProfileID()
	if profileID == "" {
		q.logger.Warn("no active profile, action will not sync",
			zap.String("action", actionType))
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		q.logger.Warn("failed to encode action payload",
			zap.String("action", actionType),
			zap.Error(err))
		return
	}

	action := &store.PendingAction{
		ProfileID:   profileID,
		ActionType:  actionType,
		PayloadJSON: string(data),
	}
	if err := q.store.Append(action); err != nil {
		q.logger.Warn("failed to queue action",
			zap.String("action", actionType),
			zap.Error(err))
		return
	}
	monitoring.RecordSyncAction(actionType, "queued")
	q.updatePendingGauge()
}

// PendingCount returns the number of queued actions
func (q *Queue) PendingCount() (int, error) {
	return q.store.Count()
}

// ProcessPendingActions replays queued actions in creation order. Server
// endpoints tolerate at-least-once delivery, so an action interrupted
// after the request landed is safely retried. An action that fails
// maxRetries times is dropped rather than wedging the queue. Only actions
// tagged with the active profile are replayed; the rest stay queued until
// their profile is active again.
func (q *Queue) ProcessPendingActions(ctx context.Context) error {
	q.processMu.Lock()
	defer q.processMu.Unlock()

	actions, err := q.store.List()
	if err != nil {
		return err
	}
	activeProfile := q.profiles.ActiveProfileID()

	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if action.ProfileID != activeProfile {
			continue
		}

		if err := q.dispatch(ctx, action); err != nil {
			retries, incErr := q.store.IncrementRetry(action.ID)
			if incErr != nil {
				q.logger.Warn("failed to record retry", zap.Error(incErr))
				continue
			}
			if retries >= q.maxRetries {
				q.logger.Warn("dropping action after repeated failures",
					zap.Int64("id", action.ID),
					zap.String("action", action.ActionType),
					zap.Int("retries", retries),
					zap.Error(err))
				monitoring.RecordSyncAction(action.ActionType, "dropped")
				if delErr := q.store.Delete(action.ID); delErr != nil {
					q.logger.Warn("failed to drop action", zap.Error(delErr))
				}
			} else {
				q.logger.Info("action replay failed, will retry",
					zap.Int64("id", action.ID),
					zap.String("action", action.ActionType),
					zap.Error(err))
				monitoring.RecordSyncAction(action.ActionType, "retried")
			}
			continue
		}

		monitoring.RecordSyncAction(action.ActionType, "synced")
		if err := q.store.Delete(action.ID); err != nil {
			q.logger.Warn("failed to delete synced action", zap.Error(err))
		}
	}

	q.updatePendingGauge()
	return nil
}

func (q *Queue) dispatch(ctx context.Context, action *store.PendingAction) error {
	switch action.ActionType {
	case ActionScrobble:
		var p ScrobblePayload
		if err := json.Unmarshal([]byte(action.PayloadJSON), &p); err != nil {
			return err
		}
		return q.api.Scrobble(ctx, p.TrackID, p.PlayedAt)
	case ActionNowPlaying:
		var p NowPlayingPayload
		if err := json.Unmarshal([]byte(action.PayloadJSON), &p); err != nil {
			return err
		}
		return q.api.ReportNowPlaying(ctx, p.TrackID)
	case ActionSetFavorite:
		var p FavoritePayload
		if err := json.Unmarshal([]byte(action.PayloadJSON), &p); err != nil {
			return err
		}
		return q.api.SetFavorite(ctx, p.TrackID, p.Favorite)
	case ActionExternalSync:
		return q.api.TriggerExternalSync(ctx)
	default:
		// Unknown types cannot succeed on retry either; drop via the
		// success path after logging
		q.logger.Warn("unknown action type, discarding",
			zap.String("action", action.ActionType))
		return nil
	}
}

func (q *Queue) updatePendingGauge() {
	if count, err := q.store.Count(); err == nil {
		monitoring.UpdatePendingActions(count)
	}
}
