package store

import (
	"sync"
	"time"
)

// MemoryOfflineStore is the in-memory OfflineStore used when the database
// cannot be opened. Contents are lost on restart; Available reports false
// so callers can surface degraded persistence.
type MemoryOfflineStore struct {
	mu       sync.RWMutex
	tracks   map[string]*OfflineTrackRecord
	partials map[string]*PartialDownloadRecord
	artwork  map[string]*ArtworkRecord
}

// NewMemoryOfflineStore creates an empty in-memory offline store
func NewMemoryOfflineStore() *MemoryOfflineStore {
	return &MemoryOfflineStore{
		tracks:   make(map[string]*OfflineTrackRecord),
		partials: make(map[string]*PartialDownloadRecord),
		artwork:  make(map[string]*ArtworkRecord),
	}
}

// Available reports whether writes survive a restart
func (s *MemoryOfflineStore) Available() bool { return false }

func (s *MemoryOfflineStore) SaveTrack(rec *OfflineTrackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CachedAt.IsZero() {
		rec.CachedAt = time.Now()
	}
	cp := *rec
	s.tracks[rec.TrackID] = &cp
	delete(s.partials, rec.TrackID)
	return nil
}

func (s *MemoryOfflineStore) GetTrack(trackID string) (*OfflineTrackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tracks[trackID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryOfflineStore) DeleteTrack(trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracks, trackID)
	return nil
}

func (s *MemoryOfflineStore) ListTracks() ([]*OfflineTrackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*OfflineTrackRecord, 0, len(s.tracks))
	for _, rec := range s.tracks {
		cp := *rec
		recs = append(recs, &cp)
	}
	sortTracksByCachedAt(recs)
	return recs, nil
}

func (s *MemoryOfflineStore) SavePartial(rec *PartialDownloadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.UpdatedAt = time.Now()
	cp := *rec
	s.partials[rec.TrackID] = &cp
	return nil
}

func (s *MemoryOfflineStore) GetPartial(trackID string) (*PartialDownloadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.partials[trackID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryOfflineStore) DeletePartial(trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partials, trackID)
	return nil
}

func (s *MemoryOfflineStore) SaveArtwork(rec *ArtworkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CachedAt.IsZero() {
		rec.CachedAt = time.Now()
	}
	cp := *rec
	s.artwork[rec.ContentHash+"/"+rec.Variant] = &cp
	return nil
}

func (s *MemoryOfflineStore) GetArtwork(contentHash, variant string) (*ArtworkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.artwork[contentHash+"/"+variant]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryOfflineStore) Usage() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, rec := range s.tracks {
		total += rec.SizeBytes
	}
	for _, rec := range s.partials {
		total += rec.BytesDownloaded
	}
	return total, nil
}

func sortTracksByCachedAt(recs []*OfflineTrackRecord) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j].CachedAt.Before(recs[j-1].CachedAt); j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}
}

// MemoryActionStore is the in-memory ActionStore fallback. It satisfies
// the full ActionStore contract; queued actions replay normally but do
// not survive a restart.
type MemoryActionStore struct {
	mu      sync.Mutex
	nextID  int64
	actions []*PendingAction
}

// NewMemoryActionStore creates an empty in-memory action store
func NewMemoryActionStore() *MemoryActionStore {
	return &MemoryActionStore{nextID: 1}
}

// Available reports whether writes survive a restart
func (s *MemoryActionStore) Available() bool { return false }

func (s *MemoryActionStore) Append(action *PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}
	action.ID = s.nextID
	s.nextID++
	cp := *action
	s.actions = append(s.actions, &cp)
	return nil
}

func (s *MemoryActionStore) List() ([]*PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PendingAction, 0, len(s.actions))
	for _, a := range s.actions {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryActionStore) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.actions {
		if a.ID == id {
			s.actions = append(s.actions[:i], s.actions[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryActionStore) IncrementRetry(id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.actions {
		if a.ID == id {
			a.RetryCount++
			return a.RetryCount, nil
		}
	}
	return 0, nil
}

func (s *MemoryActionStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions), nil
}
