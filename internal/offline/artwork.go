package offline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/auralis/auralis-go/internal/errors"
	"github.com/auralis/auralis-go/internal/store"
	"github.com/nfnt/resize"
)

// Artwork variants stored per content hash
const (
	ArtworkFull  = "full"
	ArtworkThumb = "thumb"
)

// artworkRetryConfig retries transient fetch errors briefly. Artwork is
// opportunistic, so the backoff stays short.
func artworkRetryConfig() apperrors.RetryConfig {
	cfg := apperrors.DefaultRetryConfig()
	cfg.MaxRetries = 2
	cfg.InitialBackoff = 200 * time.Millisecond
	cfg.MaxBackoff = time.Second
	return cfg
}

// cacheArtwork fetches the track's artwork and stores the original plus a
// resized thumbnail, both keyed by content hash so identical album art is
// stored once. A 404 from the server is a normal miss, not an error.
func (s *Service) cacheArtwork(ctx context.Context, trackID string) error {
	var data []byte
	notFound := false
	err := apperrors.RetryWithBackoff(ctx, artworkRetryConfig(), func() error {
		d, fetchErr := s.api.FetchArtwork(ctx, trackID)
		if fetchErr != nil {
			// A 404 is a normal miss, not worth retrying
			if apperrors.IsNotFoundError(fetchErr) {
				notFound = true
				return nil
			}
			return fetchErr
		}
		data = d
		return nil
	})
	if err != nil {
		return err
	}
	if notFound {
		return nil
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	// Identical artwork already cached
	if rec, err := s.store.GetArtwork(hash, ArtworkFull); err == nil && rec != nil {
		if _, statErr := os.Stat(rec.FilePath); statErr == nil {
			return nil
		}
	}

	dir := filepath.Join(s.cfg.CacheDir, "artwork")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewStorageError("failed to create artwork directory", err)
	}

	fullPath := filepath.Join(dir, fmt.Sprintf("%s_%s.jpg", hash, ArtworkFull))
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return apperrors.NewStorageError("failed to write artwork", err)
	}
	if err := s.store.SaveArtwork(&store.ArtworkRecord{
		ContentHash: hash,
		Variant:     ArtworkFull,
		FilePath:    fullPath,
		SizeBytes:   int64(len(data)),
	}); err != nil {
		return err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Undecodable artwork keeps the full variant only
		return apperrors.NewDecodeError("failed to decode artwork", err)
	}

	size := uint(s.cfg.ArtworkThumbSize)
	thumb := resize.Thumbnail(size, size, img, resize.Lanczos3)

	thumbPath := filepath.Join(dir, fmt.Sprintf("%s_%s.jpg", hash, ArtworkThumb))
	out, err := os.Create(thumbPath)
	if err != nil {
		return apperrors.NewStorageError("failed to create thumbnail", err)
	}
	if err := jpeg.Encode(out, thumb, &jpeg.Options{Quality: 85}); err != nil {
		out.Close()
		return apperrors.NewStorageError("failed to encode thumbnail", err)
	}
	if err := out.Close(); err != nil {
		return apperrors.NewStorageError("failed to close thumbnail", err)
	}

	info, err := os.Stat(thumbPath)
	if err != nil {
		return apperrors.NewStorageError("failed to stat thumbnail", err)
	}
	return s.store.SaveArtwork(&store.ArtworkRecord{
		ContentHash: hash,
		Variant:     ArtworkThumb,
		FilePath:    thumbPath,
		SizeBytes:   info.Size(),
	})
}
