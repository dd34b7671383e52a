package library

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func writeTone(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, 8000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 8000},
		SourceBitDepth: 16,
		Data:           make([]int, 4000),
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func quiet() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestScanFindsSupportedFilesRecursively(t *testing.T) {
	dir := t.TempDir()
	writeTone(t, filepath.Join(dir, "b.wav"))
	writeTone(t, filepath.Join(dir, "nested", "deeper", "a.wav"))
	os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("jpg"), 0o644)
	os.WriteFile(filepath.Join(dir, "broken.wav"), []byte("not a wav"), 0o644)

	var calls atomic.Int32
	tracks, err := Scan(context.Background(), dir, Options{
		Workers:  2,
		Logger:   quiet(),
		Progress: func(done, total int) { calls.Add(1) },
	})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	var titles []string
	for _, tr := range tracks {
		titles = append(titles, tr.Title)
		if tr.Artist != UnknownArtist || tr.Album != UnknownAlbum {
			t.Fatalf("expected fallback artist and album, got %q/%q", tr.Artist, tr.Album)
		}
		if tr.Duration != 500*time.Millisecond {
			t.Fatalf("expected 500ms duration, got %v", tr.Duration)
		}
	}
	if diff := cmp.Diff([]string{"a", "b"}, titles); diff != "" {
		t.Fatalf("unexpected titles (-want +got):\n%s", diff)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected progress for 3 candidate files, got %d", calls.Load())
	}
}

func TestScanMissingDirectory(t *testing.T) {
	tracks, err := Scan(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{Logger: quiet()})
	if err != nil || tracks != nil {
		t.Fatalf("expected no tracks and no error, got %v, %v", tracks, err)
	}
}

func TestScanHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	writeTone(t, filepath.Join(dir, "a.wav"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Scan(ctx, dir, Options{Logger: quiet()}); err == nil {
		t.Fatal("expected error from cancelled scan")
	}
}

func TestSortIgnoresCase(t *testing.T) {
	tracks := []Track{
		{Artist: "beta", Album: "x", Title: "1"},
		{Artist: "Alpha", Album: "b", Title: "2"},
		{Artist: "alpha", Album: "A", Title: "z"},
		{Artist: "alpha", Album: "a", Title: "Y"},
	}
	Sort(tracks)
	var got []string
	for _, tr := range tracks {
		got = append(got, tr.Title)
	}
	if diff := cmp.Diff([]string{"Y", "z", "2", "1"}, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestLibraryRefreshAndLookup(t *testing.T) {
	dir := t.TempDir()
	writeTone(t, filepath.Join(dir, "song.wav"))
	lib := New(dir, quiet())
	if _, ok := lib.Track(0); ok {
		t.Fatal("expected empty library before refresh")
	}
	if _, err := lib.Refresh(context.Background(), Options{}); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	tr, ok := lib.Track(0)
	if !ok || tr.Title != "song" {
		t.Fatalf("expected song at index 0, got %+v", tr)
	}
	if _, ok := lib.Track(1); ok {
		t.Fatal("expected out of range lookup to fail")
	}
}

func TestWatchSignalsNewAudio(t *testing.T) {
	dir := t.TempDir()
	lib := New(dir, quiet())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := lib.Watch(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
	writeTone(t, filepath.Join(dir, "new.wav"))

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("expected change signal after adding a file")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			// drain a pending signal, then expect close
			<-ch
		}
	case <-time.After(time.Second):
		t.Fatal("expected channel to close after cancel")
	}
}
