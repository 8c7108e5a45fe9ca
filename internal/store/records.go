package store

import "time"

// OfflineTrackRecord represents a fully cached track. One row exists per
// track id; it supersedes any PartialDownloadRecord for the same id.
type OfflineTrackRecord struct {
	TrackID     string    `json:"track_id"`
	FilePath    string    `json:"file_path"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentHash string    `json:"content_hash,omitempty"`
	CachedAt    time.Time `json:"cached_at"`
}

// PartialDownloadRecord represents an in-flight resumable download.
// At most one exists per track id; deleted on success or explicit clear.
type PartialDownloadRecord struct {
	TrackID         string    `json:"track_id"`
	PartialPath     string    `json:"partial_path"`
	BytesDownloaded int64     `json:"bytes_downloaded"`
	TotalBytes      int64     `json:"total_bytes"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PendingAction represents a user mutation queued while offline,
// awaiting replay against the network API.
type PendingAction struct {
	ID          int64     `json:"id"`
	ProfileID   string    `json:"profile_id"`
	ActionType  string    `json:"action_type"`
	PayloadJSON string    `json:"payload_json"`
	RetryCount  int       `json:"retry_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArtworkRecord represents a cached artwork file keyed by content hash
// and size variant (thumb or full).
type ArtworkRecord struct {
	ContentHash string    `json:"content_hash"`
	Variant     string    `json:"variant"`
	FilePath    string    `json:"file_path"`
	SizeBytes   int64     `json:"size_bytes"`
	CachedAt    time.Time `json:"cached_at"`
}

// OfflineStore persists offline track blobs, partial downloads and cached
// artwork. Implementations must report availability; callers rely on the
// in-memory fallback rather than branching on it.
type OfflineStore interface {
	// Available reports whether writes survive a restart
	Available() bool

	SaveTrack(rec *OfflineTrackRecord) error
	// GetTrack returns (nil, nil) when no record exists for the id
	GetTrack(trackID string) (*OfflineTrackRecord, error)
	DeleteTrack(trackID string) error
	ListTracks() ([]*OfflineTrackRecord, error)

	SavePartial(rec *PartialDownloadRecord) error
	// GetPartial returns (nil, nil) when no record exists for the id
	GetPartial(trackID string) (*PartialDownloadRecord, error)
	DeletePartial(trackID string) error

	SaveArtwork(rec *ArtworkRecord) error
	// GetArtwork returns (nil, nil) when no record exists for the key
	GetArtwork(contentHash, variant string) (*ArtworkRecord, error)

	// Usage returns total bytes across cached tracks and partial downloads
	Usage() (int64, error)
}

// ActionStore persists pending actions in creation order.
type ActionStore interface {
	// Available reports whether writes survive a restart
	Available() bool

	Append(action *PendingAction) error
	// List returns all pending actions in creation order
	List() ([]*PendingAction, error)
	Delete(id int64) error
	// IncrementRetry bumps the retry counter and returns the new value
	IncrementRetry(id int64) (int, error)
	Count() (int, error)
}
