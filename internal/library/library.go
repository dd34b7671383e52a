// Package library discovers playable audio under a music directory.
package library

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sigplay/sigplay/internal/player"
)

const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Track is one playable file.
type Track struct {
	Path     string
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
	Format   player.Format
}

// Library caches the result of the last scan.
type Library struct {
	dir string
	log zerolog.Logger

	mu     sync.RWMutex
	tracks []Track
}

// Options configure scanning.
type Options struct {
	// Workers bounds concurrent tag reads. Zero uses GOMAXPROCS.
	Workers int
	// Progress, if set, is called after each file with the count done and
	// the total found.
	Progress func(done, total int)
	Logger   *zerolog.Logger
}

func New(dir string, logger *zerolog.Logger) *Library {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Library{dir: dir, log: l.With().Str("component", "library").Logger()}
}

// Dir is the music directory.
func (l *Library) Dir() string { return l.dir }

// Tracks returns the tracks from the last scan.
func (l *Library) Tracks() []Track {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.tracks)
}

// Track returns the track at index i.
func (l *Library) Track(i int) (Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.tracks) {
		return Track{}, false
	}
	return l.tracks[i], true
}

// Refresh rescans the directory and replaces the cached tracks.
func (l *Library) Refresh(ctx context.Context, opts Options) ([]Track, error) {
	if opts.Logger == nil {
		opts.Logger = &l.log
	}
	tracks, err := Scan(ctx, l.dir, opts)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.tracks = tracks
	l.mu.Unlock()
	return slices.Clone(tracks), nil
}

// Scan walks dir for supported audio files, reads their tags and returns
// them sorted by artist, album and title. A missing directory yields no
// tracks. Unreadable files are skipped.
func Scan(ctx context.Context, dir string, opts Options) ([]Track, error) {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	paths, err := findAudio(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Str("dir", dir).Msg("music directory does not exist")
			return nil, nil
		}
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*Track, len(paths))
	var done atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := readTrack(path)
			if err != nil {
				logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable file")
			} else {
				results[i] = &t
			}
			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), len(paths))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(results))
	for _, t := range results {
		if t != nil {
			tracks = append(tracks, *t)
		}
	}
	Sort(tracks)
	logger.Info().Str("dir", dir).Int("tracks", len(tracks)).Msg("library scanned")
	return tracks, nil
}

func findAudio(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() && player.SupportedExt(filepath.Ext(path)) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func readTrack(path string) (Track, error) {
	dur, format, err := player.Probe(path)
	if err != nil {
		return Track{}, err
	}
	meta := player.ReadMetadata(path)
	t := Track{
		Path:     path,
		Title:    meta.Title,
		Artist:   meta.Artist,
		Album:    meta.Album,
		Duration: dur,
		Format:   format,
	}
	if t.Artist == "" {
		t.Artist = UnknownArtist
	}
	if t.Album == "" {
		t.Album = UnknownAlbum
	}
	return t, nil
}

// Sort orders tracks by artist, album then title, ignoring case.
func Sort(tracks []Track) {
	slices.SortStableFunc(tracks, func(a, b Track) int {
		for _, pair := range [][2]string{{a.Artist, b.Artist}, {a.Album, b.Album}, {a.Title, b.Title}} {
			if c := strings.Compare(strings.ToLower(pair[0]), strings.ToLower(pair[1])); c != 0 {
				return c
			}
		}
		return 0
	})
}
