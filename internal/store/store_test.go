package store

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *Stores {
	// Create temporary database
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	stores := &Stores{
		DB:      db,
		Offline: NewSQLiteOfflineStore(db),
		Actions: NewSQLiteActionStore(db),
	}
	t.Cleanup(func() { stores.Close() })
	return stores
}

// offlineStores returns both implementations so every test covers the
// durable store and the in-memory fallback with the same assertions.
func offlineStores(t *testing.T) map[string]OfflineStore {
	return map[string]OfflineStore{
		"sqlite": setupTestDB(t).Offline,
		"memory": NewMemoryOfflineStore(),
	}
}

func actionStores(t *testing.T) map[string]ActionStore {
	return map[string]ActionStore{
		"sqlite": setupTestDB(t).Actions,
		"memory": NewMemoryActionStore(),
	}
}

func TestOfflineStore_SaveAndGetTrack(t *testing.T) {
	for name, store := range offlineStores(t) {
		t.Run(name, func(t *testing.T) {
			rec := &OfflineTrackRecord{
				TrackID:     "track-123",
				FilePath:    "/cache/track-123.flac",
				SizeBytes:   10485760,
				ContentHash: "abc123",
			}
			if err := store.SaveTrack(rec); err != nil {
				t.Fatalf("Failed to save track: %v", err)
			}

			got, err := store.GetTrack("track-123")
			if err != nil {
				t.Fatalf("Failed to get track: %v", err)
			}
			if got == nil {
				t.Fatal("Expected track record, got nil")
			}
			if got.FilePath != rec.FilePath {
				t.Errorf("Expected path %s, got %s", rec.FilePath, got.FilePath)
			}
			if got.SizeBytes != rec.SizeBytes {
				t.Errorf("Expected size %d, got %d", rec.SizeBytes, got.SizeBytes)
			}
			if got.CachedAt.IsZero() {
				t.Error("Expected CachedAt to be set")
			}
		})
	}
}

func TestOfflineStore_GetMissingTrack(t *testing.T) {
	for name, store := range offlineStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.GetTrack("no-such-track")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != nil {
				t.Errorf("Expected nil for missing track, got %+v", got)
			}
		})
	}
}

func TestOfflineStore_SaveTrackClearsPartial(t *testing.T) {
	for name, store := range offlineStores(t) {
		t.Run(name, func(t *testing.T) {
			partial := &PartialDownloadRecord{
				TrackID:         "track-456",
				PartialPath:     "/cache/track-456.part",
				BytesDownloaded: 4194304,
				TotalBytes:      10485760,
			}
			if err := store.SavePartial(partial); err != nil {
				t.Fatalf("Failed to save partial: %v", err)
			}

			rec := &OfflineTrackRecord{
				TrackID:   "track-456",
				FilePath:  "/cache/track-456.flac",
				SizeBytes: 10485760,
			}
			if err := store.SaveTrack(rec); err != nil {
				t.Fatalf("Failed to save track: %v", err)
			}

			got, err := store.GetPartial("track-456")
			if err != nil {
				t.Fatalf("Failed to get partial: %v", err)
			}
			if got != nil {
				t.Error("Expected partial record cleared after track save")
			}
		})
	}
}

func TestOfflineStore_SaveTrackUpsert(t *testing.T) {
	for name, store := range offlineStores(t) {
		t.Run(name, func(t *testing.T) {
			first := &OfflineTrackRecord{TrackID: "track-1", FilePath: "/a", SizeBytes: 100}
			if err := store.SaveTrack(first); err != nil {
				t.Fatalf("Failed to save track: %v", err)
			}
			second := &OfflineTrackRecord{TrackID: "track-1", FilePath: "/b", SizeBytes: 200}
			if err := store.SaveTrack(second); err != nil {
				t.Fatalf("Failed to re-save track: %v", err)
			}

			got, err := store.GetTrack("track-1")
			if err != nil {
				t.Fatalf("Failed to get track: %v", err)
			}
			if got.FilePath != "/b" || got.SizeBytes != 200 {
				t.Errorf("Expected updated record, got %+v", got)
			}

			recs, err := store.ListTracks()
			if err != nil {
				t.Fatalf("Failed to list tracks: %v", err)
			}
			if len(recs) != 1 {
				t.Errorf("Expected 1 track after upsert, got %d", len(recs))
			}
		})
	}
}

func TestOfflineStore_DeleteTrack(t *testing.T) {
	for name, store := range offlineStores(t) {
		t.Run(name, func(t *testing.T) {
			rec := &OfflineTrackRecord{TrackID: "track-del", FilePath: "/x", SizeBytes: 50}
			if err := store.SaveTrack(rec); err != nil {
				t.Fatalf("Failed to save track: %v", err)
			}
			if err := store.DeleteTrack("track-del"); err != nil {
				t.Fatalf("Failed to delete track: %v", err)
			}
			got, err := store.GetTrack("track-del")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != nil {
				t.Error("Expected track deleted")
			}

			// Deleting again is a no-op
			if err := store.DeleteTrack("track-del"); err != nil {
				t.Errorf("Expected no error deleting missing track: %v", err)
			}
		})
	}
}

func TestOfflineStore_PartialRoundTrip(t *testing.T) {
	for name, store := range offlineStores(t) {
		t.Run(name, func(t *testing.T) {
			rec := &PartialDownloadRecord{
				TrackID:         "track-p",
				PartialPath:     "/cache/track-p.part",
				BytesDownloaded: 1024,
				TotalBytes:      2048,
			}
			if err := store.SavePartial(rec); err != nil {
				t.Fatalf("Failed to save partial: %v", err)
			}

			// Progress update overwrites
			rec.BytesDownloaded = 1536
			if err := store.SavePartial(rec); err != nil {
				t.Fatalf("Failed to update partial: %v", err)
			}

			got, err := store.GetPartial("track-p")
			if err != nil {
				t.Fatalf("Failed to get partial: %v", err)
			}
			if got == nil {
				t.Fatal("Expected partial record, got nil")
			}
			if got.BytesDownloaded != 1536 {
				t.Errorf("Expected 1536 bytes downloaded, got %d", got.BytesDownloaded)
			}
			if got.UpdatedAt.IsZero() {
				t.Error("Expected UpdatedAt to be set")
			}

			if err := store.DeletePartial("track-p"); err != nil {
				t.Fatalf("Failed to delete partial: %v", err)
			}
			got, _ = store.GetPartial("track-p")
			if got != nil {
				t.Error("Expected partial deleted")
			}
		})
	}
}

func TestOfflineStore_Usage(t *testing.T) {
	for name, store := range offlineStores(t) {
		t.Run(name, func(t *testing.T) {
			usage, err := store.Usage()
			if err != nil {
				t.Fatalf("Failed to get usage: %v", err)
			}
			if usage != 0 {
				t.Errorf("Expected 0 usage for empty store, got %d", usage)
			}

			store.SaveTrack(&OfflineTrackRecord{TrackID: "a", FilePath: "/a", SizeBytes: 1000})
			store.SaveTrack(&OfflineTrackRecord{TrackID: "b", FilePath: "/b", SizeBytes: 2000})
			store.SavePartial(&PartialDownloadRecord{TrackID: "c", PartialPath: "/c.part", BytesDownloaded: 500, TotalBytes: 3000})

			usage, err = store.Usage()
			if err != nil {
				t.Fatalf("Failed to get usage: %v", err)
			}
			if usage != 3500 {
				t.Errorf("Expected usage 3500, got %d", usage)
			}
		})
	}
}

func TestOfflineStore_ArtworkRoundTrip(t *testing.T) {
	for name, store := range offlineStores(t) {
		t.Run(name, func(t *testing.T) {
			rec := &ArtworkRecord{
				ContentHash: "deadbeef",
				Variant:     "thumb",
				FilePath:    "/cache/art/deadbeef_thumb.jpg",
				SizeBytes:   4096,
			}
			if err := store.SaveArtwork(rec); err != nil {
				t.Fatalf("Failed to save artwork: %v", err)
			}

			got, err := store.GetArtwork("deadbeef", "thumb")
			if err != nil {
				t.Fatalf("Failed to get artwork: %v", err)
			}
			if got == nil {
				t.Fatal("Expected artwork record, got nil")
			}
			if got.FilePath != rec.FilePath {
				t.Errorf("Expected path %s, got %s", rec.FilePath, got.FilePath)
			}

			// Different variant is a separate entry
			got, err = store.GetArtwork("deadbeef", "full")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != nil {
				t.Error("Expected nil for missing variant")
			}
		})
	}
}

func TestActionStore_AppendAndList(t *testing.T) {
	for name, store := range actionStores(t) {
		t.Run(name, func(t *testing.T) {
			first := &PendingAction{
				ProfileID:   "user-1",
				ActionType:  "set_favorite",
				PayloadJSON: `{"track_id":"t1","favorite":true}`,
				CreatedAt:   time.Now().Add(-time.Minute),
			}
			second := &PendingAction{
				ProfileID:   "user-1",
				ActionType:  "scrobble",
				PayloadJSON: `{"track_id":"t2"}`,
			}

			if err := store.Append(first); err != nil {
				t.Fatalf("Failed to append action: %v", err)
			}
			if err := store.Append(second); err != nil {
				t.Fatalf("Failed to append action: %v", err)
			}
			if first.ID == 0 || second.ID == 0 {
				t.Error("Expected assigned ids after append")
			}

			actions, err := store.List()
			if err != nil {
				t.Fatalf("Failed to list actions: %v", err)
			}
			if len(actions) != 2 {
				t.Fatalf("Expected 2 actions, got %d", len(actions))
			}
			if actions[0].ActionType != "set_favorite" || actions[1].ActionType != "scrobble" {
				t.Errorf("Expected creation order, got %s then %s",
					actions[0].ActionType, actions[1].ActionType)
			}
		})
	}
}

func TestActionStore_DeleteAndCount(t *testing.T) {
	for name, store := range actionStores(t) {
		t.Run(name, func(t *testing.T) {
			a := &PendingAction{ProfileID: "user-1", ActionType: "scrobble", PayloadJSON: "{}"}
			if err := store.Append(a); err != nil {
				t.Fatalf("Failed to append action: %v", err)
			}

			count, err := store.Count()
			if err != nil {
				t.Fatalf("Failed to count: %v", err)
			}
			if count != 1 {
				t.Errorf("Expected count 1, got %d", count)
			}

			if err := store.Delete(a.ID); err != nil {
				t.Fatalf("Failed to delete action: %v", err)
			}
			count, _ = store.Count()
			if count != 0 {
				t.Errorf("Expected count 0 after delete, got %d", count)
			}
		})
	}
}

func TestActionStore_IncrementRetry(t *testing.T) {
	for name, store := range actionStores(t) {
		t.Run(name, func(t *testing.T) {
			a := &PendingAction{ProfileID: "user-1", ActionType: "now_playing", PayloadJSON: "{}"}
			if err := store.Append(a); err != nil {
				t.Fatalf("Failed to append action: %v", err)
			}

			for want := 1; want <= 3; want++ {
				got, err := store.IncrementRetry(a.ID)
				if err != nil {
					t.Fatalf("Failed to increment retry: %v", err)
				}
				if got != want {
					t.Errorf("Expected retry count %d, got %d", want, got)
				}
			}
		})
	}
}

func TestStoresAvailability(t *testing.T) {
	stores := setupTestDB(t)
	if !stores.Offline.Available() {
		t.Error("Expected sqlite offline store to be available")
	}
	if !stores.Actions.Available() {
		t.Error("Expected sqlite action store to be available")
	}
	if NewMemoryOfflineStore().Available() {
		t.Error("Expected memory offline store to report unavailable")
	}
	if NewMemoryActionStore().Available() {
		t.Error("Expected memory action store to report unavailable")
	}
}
