// Package source resolves track ids to playable URIs, preferring the local
// offline cache over network streaming.
package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sync"

	apperrors "github.com/auralis/auralis-go/internal/errors"
	"github.com/auralis/auralis-go/internal/store"
	"go.uber.org/zap"
)

// CacheIndex is the slice of the offline store the resolver needs.
type CacheIndex interface {
	GetTrack(trackID string) (*store.OfflineTrackRecord, error)
}

// StreamURLProvider builds streaming URLs for tracks with no cached copy.
type StreamURLProvider interface {
	StreamURL(trackID string) string
}

// Reference is a playable source for one track. Owned references lease a
// local cache file and must be released exactly once when the consuming
// channel is done with them; streaming references have a no-op release.
type Reference struct {
	TrackID string
	URI     string
	// Owned is true for leased local cache files
	Owned bool

	resolver *Resolver
	released bool
	mu       sync.Mutex
}

// Release returns the lease. Releasing a streaming reference is a no-op;
// releasing an owned reference twice is a contract violation.
func (r *Reference) Release() error {
	if !r.Owned {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return fmt.Errorf("source reference for track %s released twice", r.TrackID)
	}
	r.released = true
	r.resolver.dropLease(r.TrackID, r)
	return nil
}

// Resolver maps track ids to References. It keeps a lease table of live
// owned references so cache eviction can tell which files are in use.
type Resolver struct {
	cache  CacheIndex
	stream StreamURLProvider
	logger *zap.Logger

	mu     sync.Mutex
	leases map[string][]*Reference
}

// NewResolver creates a resolver over the offline cache and the api client
func NewResolver(cache CacheIndex, stream StreamURLProvider, logger *zap.Logger) *Resolver {
	return &Resolver{
		cache:  cache,
		stream: stream,
		logger: logger,
		leases: make(map[string][]*Reference),
	}
}

// Resolve returns a playable reference for the track. A cached copy whose
// file still exists yields an owned file URI; a cached record with a
// missing file is logged and falls through to streaming.
func (r *Resolver) Resolve(ctx context.Context, trackID string) (*Reference, error) {
	if trackID == "" {
		return nil, apperrors.NewValidationError("track id cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("resolve cancelled")
	}

	rec, err := r.cache.GetTrack(trackID)
	if err != nil {
		r.logger.Warn("offline cache lookup failed, falling back to stream",
			zap.String("track_id", trackID),
			zap.Error(err))
	} else if rec != nil {
		if _, statErr := os.Stat(rec.FilePath); statErr == nil {
			ref := &Reference{
				TrackID:  trackID,
				URI:      fileURI(rec.FilePath),
				Owned:    true,
				resolver: r,
			}
			r.mu.Lock()
			r.leases[trackID] = append(r.leases[trackID], ref)
			r.mu.Unlock()
			return ref, nil
		}
		r.logger.Warn("cached file missing on disk, falling back to stream",
			zap.String("track_id", trackID),
			zap.String("path", rec.FilePath))
	}

	return &Reference{
		TrackID: trackID,
		URI:     r.stream.StreamURL(trackID),
		Owned:   false,
	}, nil
}

// ActiveLeases returns the number of live owned references for the track
func (r *Resolver) ActiveLeases(trackID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leases[trackID])
}

func (r *Resolver) dropLease(trackID string, ref *Reference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refs := r.leases[trackID]
	for i, candidate := range refs {
		if candidate == ref {
			refs = append(refs[:i], refs[i+1:]...)
			break
		}
	}
	if len(refs) == 0 {
		delete(r.leases, trackID)
	} else {
		r.leases[trackID] = refs
	}
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}
