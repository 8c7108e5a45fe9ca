// Package metadata reads display tags from cached audio files so the media
// session can show titles for offline tracks without asking the server.
package metadata

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// TrackTags is the subset of tags the media session displays.
type TrackTags struct {
	Title  string
	Artist string
	Album  string
	// Duration is 0 when the container does not carry it
	Duration time.Duration
}

// ProbeFile reads tags from an MP3 or FLAC file. Cached tracks carry an
// opaque extension, so unknown extensions fall back to sniffing the
// container magic.
func ProbeFile(filePath string) (*TrackTags, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return probeMP3(filePath)
	case ".flac":
		return probeFLAC(filePath)
	default:
		return probeSniffed(filePath)
	}
}

func probeSniffed(filePath string) (*TrackTags, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	magic := make([]byte, 4)
	n, _ := io.ReadFull(f, magic)
	f.Close()

	switch {
	case n >= 4 && bytes.Equal(magic, []byte("fLaC")):
		return probeFLAC(filePath)
	case n >= 3 && bytes.Equal(magic[:3], []byte("ID3")):
		return probeMP3(filePath)
	case n >= 2 && magic[0] == 0xFF && magic[1]&0xE0 == 0xE0:
		// Bare MPEG frame sync, no ID3 header
		return probeMP3(filePath)
	default:
		return nil, fmt.Errorf("unrecognized audio container: %s", filePath)
	}
}

func probeMP3(filePath string) (*TrackTags, error) {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	return &TrackTags{
		Title:  tag.Title(),
		Artist: tag.Artist(),
		Album:  tag.Album(),
	}, nil
}

func probeFLAC(filePath string) (*TrackTags, error) {
	f, err := flac.ParseFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	tags := &TrackTags{}

	if info, err := f.GetStreamInfo(); err == nil && info.SampleRate > 0 {
		seconds := float64(info.SampleCount) / float64(info.SampleRate)
		tags.Duration = time.Duration(seconds * float64(time.Second))
	}

	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			continue
		}
		if titles, err := cmt.Get(flacvorbis.FIELD_TITLE); err == nil && len(titles) > 0 {
			tags.Title = titles[0]
		}
		if artists, err := cmt.Get(flacvorbis.FIELD_ARTIST); err == nil && len(artists) > 0 {
			tags.Artist = artists[0]
		}
		if albums, err := cmt.Get(flacvorbis.FIELD_ALBUM); err == nil && len(albums) > 0 {
			tags.Album = albums[0]
		}
		break
	}
	return tags, nil
}
