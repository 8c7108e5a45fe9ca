package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
)

func TestProbeFileUnsupportedFormat(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "track.ogg")
	if err := os.WriteFile(path, []byte("OggS garbage"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if _, err := ProbeFile(path); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestProbeFileMissing(t *testing.T) {
	if _, err := ProbeFile("/nonexistent/track.mp3"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestProbeMP3RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "track.mp3")
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("Failed to open test file: %v", err)
	}
	tag.SetTitle("Night Drive")
	tag.SetArtist("The Testers")
	tag.SetAlbum("Fixtures")
	if err := tag.Save(); err != nil {
		t.Fatalf("Failed to save tag: %v", err)
	}
	tag.Close()

	tags, err := ProbeFile(path)
	if err != nil {
		t.Fatalf("ProbeFile failed: %v", err)
	}
	if tags.Title != "Night Drive" {
		t.Errorf("Expected title 'Night Drive', got %q", tags.Title)
	}
	if tags.Artist != "The Testers" {
		t.Errorf("Expected artist 'The Testers', got %q", tags.Artist)
	}
	if tags.Album != "Fixtures" {
		t.Errorf("Expected album 'Fixtures', got %q", tags.Album)
	}
}

func TestProbeSniffsTaggedFileWithOpaqueExtension(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "abc123.media")
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("Failed to open test file: %v", err)
	}
	tag.SetTitle("Opaque")
	if err := tag.Save(); err != nil {
		t.Fatalf("Failed to save tag: %v", err)
	}
	tag.Close()

	tags, err := ProbeFile(path)
	if err != nil {
		t.Fatalf("ProbeFile failed: %v", err)
	}
	if tags.Title != "Opaque" {
		t.Errorf("Expected title 'Opaque', got %q", tags.Title)
	}
}

func TestProbeFLACRejectsGarbage(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "track.flac")
	if err := os.WriteFile(path, []byte("not a flac stream"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if _, err := ProbeFile(path); err == nil {
		t.Error("Expected error for invalid FLAC data")
	}
}
