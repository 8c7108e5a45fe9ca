// Package offline downloads tracks into the local cache with resumable
// transfers, so playback keeps working without the server.
package offline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/auralis/auralis-go/internal/config"
	apperrors "github.com/auralis/auralis-go/internal/errors"
	"github.com/auralis/auralis-go/internal/monitoring"
	"github.com/auralis/auralis-go/internal/network"
	"github.com/auralis/auralis-go/internal/security"
	"github.com/auralis/auralis-go/internal/store"
	"go.uber.org/zap"
)

const downloadChunkSize = 64 * 1024

// StreamFetcher is the slice of the api client the service needs.
type StreamFetcher interface {
	FetchTrackStream(ctx context.Context, trackID string, offset int64) (*network.RangeResponse, error)
	FetchArtwork(ctx context.Context, trackID string) ([]byte, error)
}

// ProgressFunc reports per-track download progress. percent is -1 while the
// total size is unknown.
type ProgressFunc func(trackID string, bytesDownloaded, totalBytes int64, percent float64)

// BatchProgressFunc reports batch progress: the per-track percent plus the
// overall percent across the whole batch.
type BatchProgressFunc func(trackID string, trackPercent, overallPercent float64, completed, total int)

// BatchResult summarizes a batch download. Every requested id appears in
// exactly one of the two fields.
type BatchResult struct {
	Succeeded []string
	Failed    map[string]error
}

// Service acquires tracks for offline playback. Batch downloads are
// strictly sequential; per-track downloads refuse to run concurrently for
// the same id.
type Service struct {
	store  store.OfflineStore
	api    StreamFetcher
	cfg    config.OfflineConfig
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewService creates the acquisition service over the offline store
func NewService(st store.OfflineStore, api StreamFetcher, cfg config.OfflineConfig, logger *zap.Logger) *Service {
	if cfg.ProgressFlushChunks < 1 {
		cfg.ProgressFlushChunks = 16
	}
	return &Service{
		store:  st,
		api:    api,
		cfg:    cfg,
		logger: logger,
		active: make(map[string]struct{}),
	}
}

func (s *Service) trackPath(trackID string) string {
	return filepath.Join(s.cfg.CacheDir, "tracks", security.SafeFileComponent(trackID)+".media")
}

func (s *Service) partialPath(trackID string) string {
	return filepath.Join(s.cfg.CacheDir, "partial", security.SafeFileComponent(trackID)+".part")
}

// DownloadTrack fetches one track into the cache. Already-cached tracks
// report completion immediately; interrupted downloads resume from the
// persisted partial offset when the server honors range requests.
func (s *Service) DownloadTrack(ctx context.Context, trackID string, onProgress ProgressFunc) error {
	if trackID == "" {
		return apperrors.NewValidationError("track id cannot be empty")
	}

	if rec, err := s.store.GetTrack(trackID); err == nil && rec != nil {
		if _, statErr := os.Stat(rec.FilePath); statErr == nil {
			if onProgress != nil {
				onProgress(trackID, rec.SizeBytes, rec.SizeBytes, 100)
			}
			return nil
		}
		// Cached record with a missing file: drop the record and redownload
		s.logger.Warn("cached file missing, redownloading",
			zap.String("track_id", trackID),
			zap.String("path", rec.FilePath))
		if delErr := s.store.DeleteTrack(trackID); delErr != nil {
			s.logger.Warn("failed to drop stale track record", zap.Error(delErr))
		}
	}

	s.mu.Lock()
	if _, busy := s.active[trackID]; busy {
		s.mu.Unlock()
		return apperrors.NewValidationError(fmt.Sprintf("download already in progress: %s", trackID))
	}
	s.active[trackID] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, trackID)
		s.mu.Unlock()
	}()

	return s.download(ctx, trackID, onProgress)
}

func (s *Service) download(ctx context.Context, trackID string, onProgress ProgressFunc) error {
	partialFile := s.partialPath(trackID)
	if err := os.MkdirAll(filepath.Dir(partialFile), 0o755); err != nil {
		return apperrors.NewStorageError("failed to create cache directory", err)
	}

	// The file on disk is authoritative for the resume offset; the record
	// may be stale if the process died between flushes.
	var offset int64
	var knownTotal int64 = -1
	if partial, err := s.store.GetPartial(trackID); err == nil && partial != nil {
		if info, statErr := os.Stat(partialFile); statErr == nil {
			offset = info.Size()
			knownTotal = partial.TotalBytes
		} else {
			if delErr := s.store.DeletePartial(trackID); delErr != nil {
				s.logger.Warn("failed to drop stale partial record", zap.Error(delErr))
			}
		}
	}

	resumed := offset > 0
	monitoring.RecordDownloadStart()
	start := time.Now()

	resp, err := s.api.FetchTrackStream(ctx, trackID, offset)
	if err != nil {
		monitoring.RecordDownloadFailed(resumed, string(apperrors.GetErrorType(err)))
		return err
	}
	defer resp.Body.Close()

	if resumed && !resp.Resumed {
		// Server ignored the range request; start over
		s.logger.Info("server did not honor resume, restarting download",
			zap.String("track_id", trackID),
			zap.Int64("lost_bytes", offset))
		if err := os.Truncate(partialFile, 0); err != nil && !os.IsNotExist(err) {
			monitoring.RecordDownloadFailed(resumed, "storage")
			return apperrors.NewStorageError("failed to truncate partial file", err)
		}
		offset = 0
		resumed = false
	}

	total := resp.TotalBytes
	if total < 0 {
		total = knownTotal
	}

	f, err := os.OpenFile(partialFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		monitoring.RecordDownloadFailed(resumed, "storage")
		return apperrors.NewStorageError("failed to open partial file", err)
	}

	written := offset
	flushEvery := s.cfg.ProgressFlushChunks
	chunks := 0
	buf := make([]byte, downloadChunkSize)
	stats := newTransferStats(offset)

	flush := func() {
		rec := &store.PartialDownloadRecord{
			TrackID:         trackID,
			PartialPath:     partialFile,
			BytesDownloaded: written,
			TotalBytes:      total,
		}
		if err := s.store.SavePartial(rec); err != nil {
			s.logger.Warn("failed to persist partial progress", zap.Error(err))
		}
	}

	report := func() {
		if onProgress == nil {
			return
		}
		percent := -1.0
		if total > 0 {
			percent = float64(written) / float64(total) * 100
		}
		onProgress(trackID, written, total, percent)
	}

	for {
		if err := ctx.Err(); err != nil {
			f.Close()
			flush()
			monitoring.RecordDownloadFailed(resumed, "timeout")
			return apperrors.NewTimeoutError("download cancelled")
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				f.Close()
				flush()
				monitoring.RecordDownloadFailed(resumed, "storage")
				return apperrors.NewStorageError("failed to write partial file", writeErr)
			}
			written += int64(n)
			chunks++
			stats.sample(written)
			if chunks%flushEvery == 0 {
				flush()
			}
			report()
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			// Flush what we have so the next attempt resumes from here
			f.Close()
			flush()
			monitoring.RecordDownloadFailed(resumed, "network")
			return apperrors.NewNetworkError("download interrupted", readErr)
		}
	}

	if err := f.Close(); err != nil {
		flush()
		monitoring.RecordDownloadFailed(resumed, "storage")
		return apperrors.NewStorageError("failed to close partial file", err)
	}
	if total > 0 && written != total {
		flush()
		monitoring.RecordDownloadFailed(resumed, "network")
		return apperrors.NewNetworkError(
			fmt.Sprintf("download truncated: got %d of %d bytes", written, total), nil)
	}

	hash, err := hashFile(partialFile)
	if err != nil {
		s.logger.Warn("failed to hash downloaded track", zap.Error(err))
	}

	finalPath := s.trackPath(trackID)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return apperrors.NewStorageError("failed to create track directory", err)
	}
	if err := os.Rename(partialFile, finalPath); err != nil {
		return apperrors.NewStorageError("failed to promote partial file", err)
	}

	rec := &store.OfflineTrackRecord{
		TrackID:     trackID,
		FilePath:    finalPath,
		SizeBytes:   written,
		ContentHash: hash,
	}
	if err := s.store.SaveTrack(rec); err != nil {
		return apperrors.NewStorageError("failed to record cached track", err)
	}

	monitoring.RecordDownloadComplete(resumed, time.Since(start), written-offset)
	s.refreshStorageGauge()
	if onProgress != nil {
		onProgress(trackID, written, written, 100)
	}
	s.logger.Info("track cached for offline playback",
		zap.String("track_id", trackID),
		zap.Int64("bytes", written),
		zap.Bool("resumed", resumed),
		zap.Float64("avg_bytes_per_sec", stats.speed()))

	if s.cfg.DownloadArtwork {
		// Artwork is opportunistic: failures never fail the track
		if err := s.cacheArtwork(ctx, trackID); err != nil {
			s.logger.Debug("artwork caching skipped",
				zap.String("track_id", trackID),
				zap.Error(err))
		}
	}
	return nil
}

// DownloadTracksForOffline downloads ids strictly one at a time, continuing
// past failures so one broken track never blocks the rest of a playlist.
func (s *Service) DownloadTracksForOffline(ctx context.Context, trackIDs []string, onProgress BatchProgressFunc) (*BatchResult, error) {
	result := &BatchResult{Failed: make(map[string]error)}
	total := len(trackIDs)

	for i, trackID := range trackIDs {
		if err := ctx.Err(); err != nil {
			// Remaining ids fail with the cancellation so the result still
			// covers every requested track
			for _, rest := range trackIDs[i:] {
				result.Failed[rest] = apperrors.NewTimeoutError("batch cancelled")
			}
			return result, apperrors.NewTimeoutError("batch cancelled")
		}

		completed := i
		perTrack := func(id string, _, _ int64, percent float64) {
			if onProgress == nil {
				return
			}
			p := percent
			if p < 0 {
				p = 0
			}
			overall := (float64(completed) + p/100) / float64(total) * 100
			onProgress(id, percent, overall, completed, total)
		}

		if err := s.DownloadTrack(ctx, trackID, perTrack); err != nil {
			result.Failed[trackID] = err
			s.logger.Warn("batch download failed for track, continuing",
				zap.String("track_id", trackID),
				zap.Error(err))
			continue
		}
		result.Succeeded = append(result.Succeeded, trackID)
	}
	return result, nil
}

// RemoveTrack deletes a cached track, its partial leftovers and records
func (s *Service) RemoveTrack(trackID string) error {
	rec, err := s.store.GetTrack(trackID)
	if err != nil {
		return err
	}
	if rec != nil {
		if err := os.Remove(rec.FilePath); err != nil && !os.IsNotExist(err) {
			return apperrors.NewStorageError("failed to remove cached file", err)
		}
	}
	if err := s.store.DeleteTrack(trackID); err != nil {
		return err
	}
	if err := os.Remove(s.partialPath(trackID)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove partial file", zap.Error(err))
	}
	if err := s.store.DeletePartial(trackID); err != nil {
		s.logger.Warn("failed to remove partial record", zap.Error(err))
	}
	s.refreshStorageGauge()
	return nil
}

// ClearAll removes every cached track and partial download
func (s *Service) ClearAll() error {
	recs, err := s.store.ListTracks()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := s.RemoveTrack(rec.TrackID); err != nil {
			return err
		}
	}
	// Sweep orphaned partial files
	if entries, err := os.ReadDir(filepath.Join(s.cfg.CacheDir, "partial")); err == nil {
		for _, entry := range entries {
			path := filepath.Join(s.cfg.CacheDir, "partial", entry.Name())
			if err := os.Remove(path); err != nil {
				s.logger.Warn("failed to remove orphaned partial", zap.String("path", path))
			}
		}
	}
	s.refreshStorageGauge()
	return nil
}

// ActiveDownloads returns the number of downloads currently in flight
func (s *Service) ActiveDownloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// StorageUsage returns total cached bytes, computed on demand
func (s *Service) StorageUsage() (int64, error) {
	return s.store.Usage()
}

func (s *Service) refreshStorageGauge() {
	if usage, err := s.store.Usage(); err == nil {
		monitoring.UpdateOfflineStorageBytes(usage)
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
