package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/auralis/auralis-go/internal/errors"
	"github.com/auralis/auralis-go/internal/monitoring"
	"github.com/auralis/auralis-go/internal/network"
)

// StreamURL returns the streaming endpoint for a track id
func (c *ServerClient) StreamURL(trackID string) string {
	return fmt.Sprintf("%s/tracks/%s/stream", c.baseURL, url.PathEscape(trackID))
}

// resumePreflightTimeout bounds the HEAD check before a ranged request
const resumePreflightTimeout = 5 * time.Second

// FetchTrackStream opens the track's audio stream starting at offset.
// offset 0 requests the whole asset; a positive offset asks the server to
// resume, and the response reports whether it did. The caller owns the body.
func (c *ServerClient) FetchTrackStream(ctx context.Context, trackID string, offset int64) (*network.RangeResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, apperrors.NewNetworkError("rate limiter interrupted", err)
	}

	streamURL := c.StreamURL(trackID)
	if offset > 0 {
		// Pre-flight so a server without range support gets a plain GET
		// instead of a Range header it would ignore. A failed HEAD is not
		// conclusive; the ranged request proceeds and a 200 means restart.
		supported, _, err := network.SupportsResume(ctx, streamURL, c.authHeaders(), resumePreflightTimeout)
		if err == nil && !supported {
			offset = 0
		}
	}

	resp, err := network.FetchRange(ctx, c.streamClient, streamURL, offset, c.authHeaders())
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to open track stream", err)
	}
	return resp, nil
}

// ArtworkURL returns the artwork endpoint for a track id
func (c *ServerClient) ArtworkURL(trackID string) string {
	return fmt.Sprintf("%s/tracks/%s/artwork", c.baseURL, url.PathEscape(trackID))
}

// FetchArtwork downloads the full-size artwork image for a track.
// A missing image returns a not-found error the caller treats as
// non-fatal; artwork is never required for a track to be usable.
func (c *ServerClient) FetchArtwork(ctx context.Context, trackID string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, apperrors.NewNetworkError("rate limiter interrupted", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ArtworkURL(trackID), nil)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("failed to create request: %v", err))
	}
	for key, value := range c.authHeaders() {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.streamClient.Do(req)
	if err != nil {
		monitoring.RecordAPIRequest("/artwork", "error", time.Since(start))
		return nil, apperrors.NewNetworkError("artwork request failed", err)
	}
	defer resp.Body.Close()
	monitoring.RecordAPIRequest("/artwork", fmt.Sprintf("%d", resp.StatusCode), time.Since(start))

	if err := statusToError(resp.StatusCode, "/artwork"); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to read artwork", err)
	}
	return data, nil
}
