// Package djagent drives the external AI DJ agent that renders a mix from
// library tracks, and files finished mixes into the library.
package djagent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sigplay/sigplay/internal/library"
)

var (
	// ErrInvalidRequest is returned before the agent is started.
	ErrInvalidRequest = errors.New("invalid mix request")
	// ErrAgent covers failures to start or talk to the agent.
	ErrAgent = errors.New("dj agent failed")
	// ErrTimeout is returned when the agent runs past its deadline.
	ErrTimeout = errors.New("dj agent timed out")
	// ErrMixing is returned when the agent reports an audio processing
	// failure or the mix it names does not exist.
	ErrMixing = errors.New("mixing failed")
)

// TrackRef is how a track is described to the agent.
type TrackRef struct {
	Path     string  `json:"path"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Duration float64 `json:"duration"`
}

// Request is written as JSON to a temp file whose path is passed to the
// agent.
type Request struct {
	Tracks       []TrackRef `json:"tracks"`
	Instructions string     `json:"instructions"`
	OutputDir    string     `json:"output_dir"`
}

// NewRequest describes tracks for the agent.
func NewRequest(tracks []library.Track, instructions, outputDir string) Request {
	refs := make([]TrackRef, len(tracks))
	for i, t := range tracks {
		artist := t.Artist
		if artist == "" || artist == library.UnknownArtist {
			artist = "Unknown"
		}
		refs[i] = TrackRef{
			Path:     t.Path,
			Title:    t.Title,
			Artist:   artist,
			Duration: t.Duration.Seconds(),
		}
	}
	return Request{Tracks: refs, Instructions: instructions, OutputDir: outputDir}
}

// Validate checks the request against the filesystem.
func (r Request) Validate() error {
	if len(r.Tracks) == 0 {
		return fmt.Errorf("%w: at least one track must be selected", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Instructions) == "" {
		return fmt.Errorf("%w: mixing instructions cannot be empty", ErrInvalidRequest)
	}
	for i, t := range r.Tracks {
		if t.Path == "" {
			return fmt.Errorf("%w: track %d has no path", ErrInvalidRequest, i)
		}
		if _, err := os.Stat(t.Path); err != nil {
			return fmt.Errorf("%w: track file not found: %s (%s)", ErrInvalidRequest, t.Title, t.Path)
		}
	}
	info, err := os.Stat(r.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: output directory does not exist: %s", ErrInvalidRequest, r.OutputDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: output path is not a directory: %s", ErrInvalidRequest, r.OutputDir)
	}
	return nil
}

// DefaultOutputDir is where the agent writes mixes before they are saved.
func DefaultOutputDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "sigplay", "temp_mixes")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sigplay", "temp_mixes")
	}
	return filepath.Join(home, ".local", "share", "sigplay", "temp_mixes")
}
