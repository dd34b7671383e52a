package djagent

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalidName is returned for mix names that cannot be used as a
	// file name.
	ErrInvalidName = errors.New("invalid mix name")
	// ErrExists is returned instead of overwriting a library file.
	ErrExists = errors.New("file already exists")

	mixNameChars = regexp.MustCompile(`^[A-Za-z0-9_\-\s]+$`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// ValidateMixName turns user input into a file name: letters, digits,
// spaces, '-' and '_' only, whitespace runs become '_', and the result ends
// in .wav.
func ValidateMixName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ".wav")
	if name == "" || !mixNameChars.MatchString(name) {
		return "", fmt.Errorf("%w: use letters, numbers, spaces, '-' and '_'", ErrInvalidName)
	}
	return whitespace.ReplaceAllString(name, "_") + ".wav", nil
}

// SaveMix copies the rendered mix into musicDir under name, then removes
// the temporary file. It returns the destination path.
func SaveMix(src, musicDir, name string) (string, error) {
	file, err := ValidateMixName(name)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(musicDir, file)
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("%w: %s, choose a different name", ErrExists, file)
	}
	if err := copyFile(src, dest); err != nil {
		return "", err
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		return dest, fmt.Errorf("removing temp mix: %w", err)
	}
	return dest, nil
}

// DiscardMix removes a rendered mix that was not kept.
func DiscardMix(src string) error {
	if src == "" {
		return nil
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("discarding mix: %w", err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening mix: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, filepath.Base(dest))
		}
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("copying mix: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("copying mix: %w", err)
	}
	return nil
}
