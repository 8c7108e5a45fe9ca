// Package mediasession bridges the playback engine to a host media-session
// surface: it exposes the current track's metadata and routes transport
// actions (play, pause, next, previous, seek) back into the engine.
package mediasession

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/auralis/auralis-go/internal/metadata"
	"github.com/auralis/auralis-go/internal/playback"
	"github.com/auralis/auralis-go/internal/store"
)

// previousRestartThreshold controls the previous-track action: beyond this
// position the action restarts the current track instead of going back.
const previousRestartThreshold = 3 * time.Second

// Controller is the slice of the playback engine the session drives.
type Controller interface {
	LoadTrack(ctx context.Context, track *playback.Track) error
	Play() error
	Pause()
	Seek(pos time.Duration)
	Position() time.Duration
	Duration() time.Duration
	CurrentTrack() *playback.Track
	IsPlaying() bool
}

// Queue extends the engine's queue with backwards navigation.
type Queue interface {
	playback.TrackQueue
	Previous() *playback.Track
}

// CacheIndex looks up locally cached copies of tracks. Optional; when
// present the session probes cached files to fill metadata the server
// never supplied, so offline playback still shows something.
type CacheIndex interface {
	GetTrack(trackID string) (*store.OfflineTrackRecord, error)
}

// Metadata is the current track as presented to the host media session.
type Metadata struct {
	TrackID    string
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	Duration   time.Duration
}

// Status is a point-in-time transport snapshot.
type Status struct {
	Playing  bool
	Position time.Duration
	Duration time.Duration
}

// Session mediates between the host's media-session surface and the engine.
type Session struct {
	controller Controller
	queue      Queue
	cache      CacheIndex
	logger     *zap.Logger
}

// NewSession creates a session. cache may be nil.
func NewSession(controller Controller, queue Queue, cache CacheIndex, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		controller: controller,
		queue:      queue,
		cache:      cache,
		logger:     logger,
	}
}

// Metadata returns the current track's metadata, nil when nothing is
// loaded. Fields the queue entry left empty are filled from the cached
// file's tags when one exists.
func (s *Session) Metadata() *Metadata {
	track := s.controller.CurrentTrack()
	if track == nil {
		return nil
	}

	md := &Metadata{
		TrackID:    track.ID,
		Title:      track.Title,
		Artist:     track.Artist,
		Album:      track.Album,
		ArtworkURL: track.ArtworkURL,
		Duration:   track.Duration,
	}
	if md.Title == "" || md.Artist == "" || md.Album == "" {
		s.fillFromCache(md)
	}
	if md.Title == "" {
		md.Title = track.ID
	}
	return md
}

func (s *Session) fillFromCache(md *Metadata) {
	if s.cache == nil {
		return
	}
	rec, err := s.cache.GetTrack(md.TrackID)
	if err != nil || rec == nil {
		return
	}
	tags, err := metadata.ProbeFile(rec.FilePath)
	if err != nil {
		s.logger.Debug("failed to probe cached track tags",
			zap.String("track_id", md.TrackID),
			zap.Error(err))
		return
	}
	if md.Title == "" {
		md.Title = tags.Title
	}
	if md.Artist == "" {
		md.Artist = tags.Artist
	}
	if md.Album == "" {
		md.Album = tags.Album
	}
	if md.Duration <= 0 {
		md.Duration = tags.Duration
	}
}

// Status reports the transport state for the host surface.
func (s *Session) Status() Status {
	return Status{
		Playing:  s.controller.IsPlaying(),
		Position: s.controller.Position(),
		Duration: s.controller.Duration(),
	}
}

// Play handles the host's play action.
func (s *Session) Play() error {
	return s.controller.Play()
}

// Pause handles the host's pause action.
func (s *Session) Pause() {
	s.controller.Pause()
}

// TogglePlayPause flips between playing and paused.
func (s *Session) TogglePlayPause() error {
	if s.controller.IsPlaying() {
		s.controller.Pause()
		return nil
	}
	return s.controller.Play()
}

// Next advances the queue and loads the new track. At queue end playback
// pauses and the position is left untouched.
func (s *Session) Next(ctx context.Context) error {
	next := s.queue.Advance()
	if next == nil {
		s.logger.Info("next requested at queue end, pausing")
		s.controller.Pause()
		return nil
	}
	return s.controller.LoadTrack(ctx, next)
}

// Previous restarts the current track when enough of it has played,
// otherwise steps the queue backwards. At the first track it restarts.
func (s *Session) Previous(ctx context.Context) error {
	if s.controller.Position() > previousRestartThreshold {
		s.controller.Seek(0)
		return nil
	}
	prev := s.queue.Previous()
	if prev == nil {
		s.controller.Seek(0)
		return nil
	}
	return s.controller.LoadTrack(ctx, prev)
}

// SeekTo handles the host's absolute seek action.
func (s *Session) SeekTo(pos time.Duration) {
	if pos < 0 {
		pos = 0
	}
	s.controller.Seek(pos)
}
