package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SQLiteOfflineStore is the durable OfflineStore backed by SQLite.
type SQLiteOfflineStore struct {
	db *sql.DB
}

// NewSQLiteOfflineStore creates an OfflineStore on an initialized database
func NewSQLiteOfflineStore(db *sql.DB) *SQLiteOfflineStore {
	return &SQLiteOfflineStore{db: db}
}

// Available reports whether writes survive a restart
func (s *SQLiteOfflineStore) Available() bool {
	return s != nil && s.db != nil
}

// SaveTrack upserts a completed track record and removes any partial
// download row for the same id in the same transaction.
func (s *SQLiteOfflineStore) SaveTrack(rec *OfflineTrackRecord) error {
	if rec.CachedAt.IsZero() {
		rec.CachedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO offline_tracks (track_id, file_path, size_bytes, content_hash, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			file_path = excluded.file_path,
			size_bytes = excluded.size_bytes,
			content_hash = excluded.content_hash,
			cached_at = excluded.cached_at
	`, rec.TrackID, rec.FilePath, rec.SizeBytes, rec.ContentHash, rec.CachedAt)
	if err != nil {
		return fmt.Errorf("failed to save offline track: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM partial_downloads WHERE track_id = ?`, rec.TrackID); err != nil {
		return fmt.Errorf("failed to clear partial download: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTrack returns the cached track record, or (nil, nil) when absent
func (s *SQLiteOfflineStore) GetTrack(trackID string) (*OfflineTrackRecord, error) {
	rec := &OfflineTrackRecord{}
	err := s.db.QueryRow(`
		SELECT track_id, file_path, size_bytes, content_hash, cached_at
		FROM offline_tracks WHERE track_id = ?
	`, trackID).Scan(&rec.TrackID, &rec.FilePath, &rec.SizeBytes, &rec.ContentHash, &rec.CachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offline track: %w", err)
	}
	return rec, nil
}

// DeleteTrack removes the track record. Deleting a missing id is not an error.
func (s *SQLiteOfflineStore) DeleteTrack(trackID string) error {
	if _, err := s.db.Exec(`DELETE FROM offline_tracks WHERE track_id = ?`, trackID); err != nil {
		return fmt.Errorf("failed to delete offline track: %w", err)
	}
	return nil
}

// ListTracks returns all cached tracks ordered by cache time
func (s *SQLiteOfflineStore) ListTracks() ([]*OfflineTrackRecord, error) {
	rows, err := s.db.Query(`
		SELECT track_id, file_path, size_bytes, content_hash, cached_at
		FROM offline_tracks ORDER BY cached_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list offline tracks: %w", err)
	}
	defer rows.Close()

	var recs []*OfflineTrackRecord
	for rows.Next() {
		rec := &OfflineTrackRecord{}
		if err := rows.Scan(&rec.TrackID, &rec.FilePath, &rec.SizeBytes, &rec.ContentHash, &rec.CachedAt); err != nil {
			return nil, fmt.Errorf("failed to scan offline track: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// SavePartial upserts partial download progress
func (s *SQLiteOfflineStore) SavePartial(rec *PartialDownloadRecord) error {
	rec.UpdatedAt = time.Now()
	_, err := s.db.Exec(`
		INSERT INTO partial_downloads (track_id, partial_path, bytes_downloaded, total_bytes, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			partial_path = excluded.partial_path,
			bytes_downloaded = excluded.bytes_downloaded,
			total_bytes = excluded.total_bytes,
			updated_at = excluded.updated_at
	`, rec.TrackID, rec.PartialPath, rec.BytesDownloaded, rec.TotalBytes, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save partial download: %w", err)
	}
	return nil
}

// GetPartial returns partial progress for the track, or (nil, nil) when absent
func (s *SQLiteOfflineStore) GetPartial(trackID string) (*PartialDownloadRecord, error) {
	rec := &PartialDownloadRecord{}
	err := s.db.QueryRow(`
		SELECT track_id, partial_path, bytes_downloaded, total_bytes, updated_at
		FROM partial_downloads WHERE track_id = ?
	`, trackID).Scan(&rec.TrackID, &rec.PartialPath, &rec.BytesDownloaded, &rec.TotalBytes, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get partial download: %w", err)
	}
	return rec, nil
}

// DeletePartial removes partial progress. Missing ids are not an error.
func (s *SQLiteOfflineStore) DeletePartial(trackID string) error {
	if _, err := s.db.Exec(`DELETE FROM partial_downloads WHERE track_id = ?`, trackID); err != nil {
		return fmt.Errorf("failed to delete partial download: %w", err)
	}
	return nil
}

// SaveArtwork upserts a cached artwork entry
func (s *SQLiteOfflineStore) SaveArtwork(rec *ArtworkRecord) error {
	if rec.CachedAt.IsZero() {
		rec.CachedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO artwork_cache (content_hash, variant, file_path, size_bytes, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_hash, variant) DO UPDATE SET
			file_path = excluded.file_path,
			size_bytes = excluded.size_bytes,
			cached_at = excluded.cached_at
	`, rec.ContentHash, rec.Variant, rec.FilePath, rec.SizeBytes, rec.CachedAt)
	if err != nil {
		return fmt.Errorf("failed to save artwork: %w", err)
	}
	return nil
}

// GetArtwork returns a cached artwork entry, or (nil, nil) when absent
func (s *SQLiteOfflineStore) GetArtwork(contentHash, variant string) (*ArtworkRecord, error) {
	rec := &ArtworkRecord{}
	err := s.db.QueryRow(`
		SELECT content_hash, variant, file_path, size_bytes, cached_at
		FROM artwork_cache WHERE content_hash = ? AND variant = ?
	`, contentHash, variant).Scan(&rec.ContentHash, &rec.Variant, &rec.FilePath, &rec.SizeBytes, &rec.CachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artwork: %w", err)
	}
	return rec, nil
}

// Usage returns total bytes across cached tracks and partial downloads
func (s *SQLiteOfflineStore) Usage() (int64, error) {
	var complete, partial sql.NullInt64
	if err := s.db.QueryRow(`SELECT SUM(size_bytes) FROM offline_tracks`).Scan(&complete); err != nil {
		return 0, fmt.Errorf("failed to sum offline tracks: %w", err)
	}
	if err := s.db.QueryRow(`SELECT SUM(bytes_downloaded) FROM partial_downloads`).Scan(&partial); err != nil {
		return 0, fmt.Errorf("failed to sum partial downloads: %w", err)
	}
	return complete.Int64 + partial.Int64, nil
}

// SQLiteActionStore is the durable ActionStore backed by SQLite.
type SQLiteActionStore struct {
	db *sql.DB
}

// NewSQLiteActionStore creates an ActionStore on an initialized database
func NewSQLiteActionStore(db *sql.DB) *SQLiteActionStore {
	return &SQLiteActionStore{db: db}
}

// Available reports whether writes survive a restart
func (s *SQLiteActionStore) Available() bool {
	return s != nil && s.db != nil
}

// Append stores a new pending action and fills in its assigned id
func (s *SQLiteActionStore) Append(action *PendingAction) error {
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO pending_actions (profile_id, action_type, payload_json, retry_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, action.ProfileID, action.ActionType, action.PayloadJSON, action.RetryCount, action.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append pending action: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get action id: %w", err)
	}
	action.ID = id
	return nil
}

// List returns all pending actions in creation order
func (s *SQLiteActionStore) List() ([]*PendingAction, error) {
	rows, err := s.db.Query(`
		SELECT id, profile_id, action_type, payload_json, retry_count, created_at
		FROM pending_actions ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}
	defer rows.Close()

	var actions []*PendingAction
	for rows.Next() {
		a := &PendingAction{}
		if err := rows.Scan(&a.ID, &a.ProfileID, &a.ActionType, &a.PayloadJSON, &a.RetryCount, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// Delete removes a replayed or dropped action
func (s *SQLiteActionStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM pending_actions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete pending action: %w", err)
	}
	return nil
}

// IncrementRetry bumps the retry counter and returns the new value
func (s *SQLiteActionStore) IncrementRetry(id int64) (int, error) {
	if _, err := s.db.Exec(`UPDATE pending_actions SET retry_count = retry_count + 1 WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to increment retry count: %w", err)
	}
	var count int
	err := s.db.QueryRow(`SELECT retry_count FROM pending_actions WHERE id = ?`, id).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("pending action not found: %d", id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read retry count: %w", err)
	}
	return count, nil
}

// Count returns the number of queued actions
func (s *SQLiteActionStore) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_actions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending actions: %w", err)
	}
	return count, nil
}
