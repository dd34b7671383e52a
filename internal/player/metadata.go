package player

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
)

// Metadata holds song information.
type Metadata struct {
	Title  string
	Artist string
	Album  string
}

// ReadMetadata reads tags from path: ID3v2 for mp3, whatever dhowden/tag
// recognises for the rest. A missing title falls back to the file name.
func ReadMetadata(path string) Metadata {
	var m Metadata
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		m = readID3(path)
	}
	if m.Title == "" && m.Artist == "" {
		m = readTag(path)
	}
	if m.Title == "" {
		base := filepath.Base(path)
		m.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return m
}

func readID3(path string) Metadata {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Metadata{}
	}
	defer t.Close()
	return Metadata{
		Title:  strings.TrimSpace(t.Title()),
		Artist: strings.TrimSpace(t.Artist()),
		Album:  strings.TrimSpace(t.Album()),
	}
}

func readTag(path string) Metadata {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}
	}
	defer f.Close()
	t, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{}
	}
	return Metadata{
		Title:  strings.TrimSpace(t.Title()),
		Artist: strings.TrimSpace(t.Artist()),
		Album:  strings.TrimSpace(t.Album()),
	}
}

// Probe opens path with the matching decoder and reports its length and
// format without touching the audio device.
func Probe(path string) (time.Duration, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, Format{}, err
	}
	defer f.Close()
	dec, codec, err := newDecoder(f)
	if err != nil {
		return 0, Format{}, err
	}
	conv, err := newConverter(dec)
	if err != nil {
		return 0, Format{}, err
	}
	return bytesToDuration(conv.Length()), Format{Codec: codec, SampleRate: dec.SampleRate(), Channels: dec.ChannelCount()}, nil
}
