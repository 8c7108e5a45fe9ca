package api

import (
	"context"
	"net/http"
	"time"
)

// ScrobbleRequest reports a completed listen
type ScrobbleRequest struct {
	TrackID  string    `json:"track_id"`
	PlayedAt time.Time `json:"played_at"`
}

// NowPlayingRequest reports the track currently playing
type NowPlayingRequest struct {
	TrackID string `json:"track_id"`
}

// FavoriteRequest toggles a track's favorite flag
type FavoriteRequest struct {
	TrackID  string `json:"track_id"`
	Favorite bool   `json:"favorite"`
}

// Scrobble records a completed listen on the server
func (c *ServerClient) Scrobble(ctx context.Context, trackID string, playedAt time.Time) error {
	return c.doJSON(ctx, http.MethodPost, "/scrobble", &ScrobbleRequest{
		TrackID:  trackID,
		PlayedAt: playedAt,
	}, nil)
}

// ReportNowPlaying tells the server which track is currently playing
func (c *ServerClient) ReportNowPlaying(ctx context.Context, trackID string) error {
	return c.doJSON(ctx, http.MethodPost, "/now-playing", &NowPlayingRequest{
		TrackID: trackID,
	}, nil)
}

// SetFavorite sets or clears a track's favorite flag
func (c *ServerClient) SetFavorite(ctx context.Context, trackID string, favorite bool) error {
	return c.doJSON(ctx, http.MethodPost, "/favorites", &FavoriteRequest{
		TrackID:  trackID,
		Favorite: favorite,
	}, nil)
}

// TriggerExternalSync asks the server to refresh its external service state
func (c *ServerClient) TriggerExternalSync(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/sync/external", nil, nil)
}

// Ping probes server reachability. Used by the connectivity watcher; a nil
// error means the client considers itself online.
func (c *ServerClient) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/ping", nil, nil)
}
