package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sigplay/sigplay/internal/library"
	"github.com/sigplay/sigplay/internal/util"
)

type trackItem struct {
	index int
	track library.Track
}

func (i trackItem) Title() string { return i.track.Title }
func (i trackItem) Description() string {
	return fmt.Sprintf("%s · %s · %s", i.track.Artist, i.track.Album, util.FormatDuration(i.track.Duration))
}
func (i trackItem) FilterValue() string {
	return i.track.Title + " " + i.track.Artist + " " + i.track.Album
}

// LibraryView lists the scanned tracks.
type LibraryView struct {
	list    list.Model
	tracks  []library.Track
	loading bool
	err     error
}

func NewLibraryView() LibraryView {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"}).
		BorderLeftForeground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#FF6E28"})
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}).
		BorderLeftForeground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#FF6E28"})

	l := list.New(nil, delegate, 80, 20)
	l.Title = "Library"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = headerStyle
	return LibraryView{list: l, loading: true}
}

// SetTracks replaces the listed tracks, keeping the cursor where possible.
func (v LibraryView) SetTracks(tracks []library.Track, err error) (LibraryView, tea.Cmd) {
	v.loading = false
	v.err = err
	if err != nil {
		return v, nil
	}
	v.tracks = tracks
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{index: i, track: t}
	}
	cursor := v.list.Index()
	cmd := v.list.SetItems(items)
	if cursor < len(items) {
		v.list.Select(cursor)
	}
	return v, cmd
}

// Tracks returns the listed tracks in library order.
func (v LibraryView) Tracks() []library.Track { return v.tracks }

// Selected returns the library index under the cursor.
func (v LibraryView) Selected() (int, bool) {
	item, ok := v.list.SelectedItem().(trackItem)
	if !ok {
		return -1, false
	}
	return item.index, true
}

// Filtering reports whether the filter input owns the keyboard.
func (v LibraryView) Filtering() bool {
	return v.list.FilterState() == list.Filtering
}

func (v LibraryView) SetSize(w, h int) LibraryView {
	v.list.SetSize(w, h)
	return v
}

func (v LibraryView) Update(msg tea.Msg) (LibraryView, tea.Cmd) {
	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

func (v LibraryView) View() string {
	switch {
	case v.err != nil:
		return "  " + errorStyle.Render("library scan failed: "+v.err.Error())
	case v.loading:
		return "  " + statusStyle.Render("Scanning library...")
	case len(v.tracks) == 0:
		return "  " + statusStyle.Render("No music found. Add .mp3, .flac, .wav or .ogg files to your music directory.")
	}
	return v.list.View()
}
