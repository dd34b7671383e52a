package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sigplay/sigplay/internal/library"
	"github.com/sigplay/sigplay/internal/player"
	"github.com/sigplay/sigplay/internal/queue"
	"github.com/sigplay/sigplay/internal/spectrum"
	"github.com/sigplay/sigplay/internal/util"
)

const (
	defaultVolume = 0.8
	statusTTL     = 5 * time.Second
)

// Player is the playback surface the UI drives. *player.Player satisfies it.
type Player interface {
	IsPlaying() bool
	Paused() bool
	TogglePause()
	Seek(delta time.Duration) error
	Position() time.Duration
	Duration() time.Duration
	Volume() float64
	SetVolume(v float64)
	AdjustVolume(delta float64)
	Done() <-chan struct{}
	Restart() error
	Format() player.Format
	Close()
}

// Deps is everything the UI needs from the outside world.
type Deps struct {
	// LoadLibrary scans the music directory.
	LoadLibrary func(ctx context.Context) ([]library.Track, error)
	// LibraryChanges signals that the music directory changed. May be nil.
	LibraryChanges <-chan struct{}
	// OpenPlayer starts playing a file.
	OpenPlayer func(path string) (Player, error)

	Analyzer   Analyzer
	Visualizer spectrum.VisualizerConfig
	// Meter measures the PCM being played. May be nil.
	Meter LevelMeter

	// Agent is nil when the AI DJ is not configured.
	Agent        MixMaker
	MixOutputDir string
	MusicDir     string

	Volume float64
	Logger *zerolog.Logger
}

type viewID int

const (
	viewLibrary viewID = iota
	viewNowPlaying
	viewVisualizer
	viewMeters
	viewDJ
)

var viewNames = [...]string{"Library", "Now Playing", "Visualizer", "Meters", "AI DJ"}

// tabbed views cycle with tab; the DJ view is entered with its own key.
const tabbedViews = 4

func (v viewID) next() viewID { return (v + 1) % tabbedViews }
func (v viewID) prev() viewID { return (v + tabbedViews - 1) % tabbedViews }

// playback is shared by pointer so closures handed to sub-views see the
// current player across model copies.
type playback struct {
	player  Player
	track   library.Track
	preview bool
}

func (pb *playback) isPlaying() bool {
	return pb.player != nil && pb.player.IsPlaying()
}

// Model is the root Bubbletea model.
type Model struct {
	deps Deps
	log  zerolog.Logger

	view       viewID
	library    LibraryView
	visualizer VisualizerView
	meters     MetersView
	dj         djView

	pb     *playback
	queue  *queue.Queue
	spring *progressSpring

	elapsed  time.Duration
	ratio    float64
	volume   float64
	width    int
	height   int
	status   string
	statusAt time.Time
	quitting bool
}

// New creates the root model. Nothing is started until Init.
func New(deps Deps) Model {
	logger := log.Logger
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	vol := deps.Volume
	if vol <= 0 {
		vol = defaultVolume
	}
	pb := &playback{}
	return Model{
		deps:       deps,
		log:        logger.With().Str("component", "ui").Logger(),
		library:    NewLibraryView(),
		visualizer: NewVisualizerView(deps.Analyzer, deps.Visualizer, pb.isPlaying),
		meters:     NewMetersView(deps.Meter, pb.isPlaying),
		dj:         newDJView(deps.Agent, deps.MixOutputDir, deps.MusicDir),
		pb:         pb,
		queue:      queue.New(nil, 0),
		spring:     newProgressSpring(),
		volume:     vol,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.loadLibrary(),
		waitForLibraryChange(m.deps.LibraryChanges),
		tea.SetWindowTitle("sigplay"),
	)
}

func (m Model) loadLibrary() tea.Cmd {
	load := m.deps.LoadLibrary
	if load == nil {
		return nil
	}
	return func() tea.Msg {
		tracks, err := load(context.Background())
		return libraryLoadedMsg{tracks: tracks, err: err}
	}
}

func waitForLibraryChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return libraryChangedMsg{}
	}
}

func checkDone(p Player) tea.Cmd {
	return func() tea.Msg {
		<-p.Done()
		return playbackEndedMsg{player: p}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m.handleMsg(msg)
}

func (m Model) handleMsg(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.library = m.library.SetSize(msg.Width, max(msg.Height-4, 5))
		m.meters, _ = m.meters.Update(msg)
		var cmd tea.Cmd
		m.visualizer, cmd = m.visualizer.Update(msg)
		return m, cmd

	case tickMsg:
		if p := m.pb.player; p != nil {
			m.elapsed = p.Position()
			m.volume = p.Volume()
			if d := p.Duration(); d > 0 {
				m.ratio = m.spring.step(m.elapsed.Seconds() / d.Seconds())
			}
		}
		if m.status != "" && time.Since(m.statusAt) > statusTTL {
			m.status = ""
		}
		return m, tickCmd()

	case frameMsg:
		var cmd tea.Cmd
		m.visualizer, cmd = m.visualizer.Update(msg)
		return m, cmd

	case meterFrameMsg:
		var cmd tea.Cmd
		m.meters, cmd = m.meters.Update(msg)
		return m, cmd

	case playbackEndedMsg:
		return m.playbackEnded(msg.player)

	case libraryLoadedMsg:
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("library scan failed")
		} else {
			m.log.Info().Int("tracks", len(msg.tracks)).Msg("library loaded")
		}
		var cmd tea.Cmd
		m.library, cmd = m.library.SetTracks(msg.tracks, msg.err)
		m.dj = m.dj.setTracks(m.library.Tracks())
		return m, cmd

	case libraryChangedMsg:
		m.log.Debug().Msg("music directory changed, rescanning")
		return m, tea.Batch(m.loadLibrary(), waitForLibraryChange(m.deps.LibraryChanges))

	case previewMixMsg:
		t := library.Track{
			Path:   msg.path,
			Title:  "Mix preview: " + filepath.Base(msg.path),
			Artist: "AI DJ",
		}
		return m.startTrack(t, true)

	case mixSavedMsg:
		var cmd tea.Cmd
		m.dj, cmd = m.dj.Update(msg)
		if msg.err != nil {
			return m, cmd
		}
		m.log.Info().Str("path", msg.path).Msg("mix saved")
		if m.pb.preview {
			m.stopPlayback()
		}
		return m, tea.Batch(cmd, m.loadLibrary())

	case mixStatusMsg, mixDoneMsg, spinner.TickMsg:
		if done, ok := msg.(mixDoneMsg); ok && done.err != nil {
			m.log.Warn().Err(done.err).Msg("mix failed")
		}
		var cmd tea.Cmd
		m.dj, cmd = m.dj.Update(msg)
		return m, cmd

	case closeDJMsg:
		return m.switchView(viewLibrary)
	}

	var cmd tea.Cmd
	m.library, cmd = m.library.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	if m.view == viewDJ {
		var cmd tea.Cmd
		m.dj, cmd = m.dj.Update(msg)
		return m, cmd
	}
	if m.view == viewLibrary && m.library.Filtering() {
		var cmd tea.Cmd
		m.library, cmd = m.library.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()
	case key.Matches(msg, keys.NextView):
		return m.switchView(m.view.next())
	case key.Matches(msg, keys.PrevView):
		return m.switchView(m.view.prev())
	case key.Matches(msg, keys.DJ):
		m.dj = m.dj.setTracks(m.library.Tracks())
		return m.switchView(viewDJ)
	case key.Matches(msg, keys.Play) && m.view == viewLibrary:
		if i, ok := m.library.Selected(); ok {
			return m.playFromLibrary(i)
		}
		return m, nil
	case key.Matches(msg, keys.Pause):
		if p := m.pb.player; p != nil {
			p.TogglePause()
			return m, tea.SetWindowTitle(windowTitle(m.pb.track.Title, p.Paused()))
		}
		return m, nil
	case key.Matches(msg, keys.SeekBack):
		return m.seek(-player.SeekStep)
	case key.Matches(msg, keys.SeekFwd):
		return m.seek(player.SeekStep)
	case key.Matches(msg, keys.VolUp):
		m.adjustVolume(player.VolumeStep)
		return m, nil
	case key.Matches(msg, keys.VolDown):
		m.adjustVolume(-player.VolumeStep)
		return m, nil
	case key.Matches(msg, keys.NextTrack):
		if m.queue.Advance() {
			return m.playCurrent()
		}
		return m, nil
	case key.Matches(msg, keys.PrevTrack):
		if p := m.pb.player; p != nil && p.Position() > 3*time.Second {
			return m.seek(-p.Position())
		}
		if m.queue.Previous() {
			return m.playCurrent()
		}
		return m, nil
	case key.Matches(msg, keys.Shuffle):
		if m.queue.ToggleShuffle() {
			m = m.setStatus("Shuffle on")
		} else {
			m = m.setStatus("Shuffle off")
		}
		return m, nil
	case key.Matches(msg, keys.Repeat):
		m = m.setStatus("Repeat " + m.queue.CycleRepeat().String())
		return m, nil
	}

	if m.view == viewLibrary {
		var cmd tea.Cmd
		m.library, cmd = m.library.Update(msg)
		return m, cmd
	}
	return m, nil
}

// switchView moves between views, running the visualizer only while it is
// on screen.
func (m Model) switchView(to viewID) (Model, tea.Cmd) {
	if to == m.view {
		return m, nil
	}
	switch m.view {
	case viewVisualizer:
		m.visualizer = m.visualizer.Deactivate()
	case viewMeters:
		m.meters = m.meters.Deactivate()
	}
	m.view = to
	var cmd tea.Cmd
	switch to {
	case viewVisualizer:
		m.visualizer, cmd = m.visualizer.Activate()
	case viewMeters:
		m.meters, cmd = m.meters.Activate()
	}
	return m, cmd
}

func (m Model) seek(delta time.Duration) (Model, tea.Cmd) {
	p := m.pb.player
	if p == nil {
		return m, nil
	}
	if err := p.Seek(delta); err != nil {
		m = m.setStatus("Seek failed: " + err.Error())
		return m, nil
	}
	m.elapsed = p.Position()
	return m, nil
}

func (m *Model) adjustVolume(delta float64) {
	m.volume = max(0, min(m.volume+delta, 1))
	if p := m.pb.player; p != nil {
		p.AdjustVolume(delta)
		m.volume = p.Volume()
	}
}

// playFromLibrary replaces the queue with the library starting at i. The
// shuffle and repeat settings carry over.
func (m Model) playFromLibrary(i int) (Model, tea.Cmd) {
	old := m.queue
	m.queue = queue.New(m.library.Tracks(), i)
	for m.queue.Repeat() != old.Repeat() {
		m.queue.CycleRepeat()
	}
	if old.IsShuffled() {
		m.queue.EnableShuffle()
	}
	m, cmd := m.playCurrent()
	if m.pb.player != nil {
		var viewCmd tea.Cmd
		m, viewCmd = m.switchView(viewNowPlaying)
		cmd = tea.Batch(cmd, viewCmd)
	}
	return m, cmd
}

func (m Model) playCurrent() (Model, tea.Cmd) {
	t, ok := m.queue.Current()
	if !ok {
		return m, nil
	}
	return m.startTrack(t, false)
}

func (m Model) startTrack(t library.Track, preview bool) (Model, tea.Cmd) {
	m.stopPlayback()
	if m.deps.OpenPlayer == nil {
		return m, nil
	}
	p, err := m.deps.OpenPlayer(t.Path)
	if err != nil {
		m.log.Warn().Err(err).Str("path", t.Path).Msg("cannot play track")
		m = m.setStatus(fmt.Sprintf("Cannot play %s: %v", t.Title, err))
		return m, nil
	}
	p.SetVolume(m.volume)
	m.pb.player = p
	m.pb.track = t
	m.pb.preview = preview
	m.elapsed = 0
	m.ratio = 0
	m.spring.snap(0)
	return m, tea.Batch(checkDone(p), tea.SetWindowTitle(windowTitle(t.Title, false)))
}

func (m *Model) stopPlayback() {
	if m.pb.player != nil {
		m.pb.player.Close()
	}
	m.pb.player = nil
	m.pb.track = library.Track{}
	m.pb.preview = false
}

func (m Model) playbackEnded(p Player) (Model, tea.Cmd) {
	if p != m.pb.player {
		return m, nil
	}
	if m.pb.preview {
		m.stopPlayback()
		m = m.setStatus("Preview finished")
		return m, tea.SetWindowTitle("sigplay")
	}
	if m.queue.Repeat() == queue.RepeatOne {
		if err := p.Restart(); err != nil {
			m.log.Warn().Err(err).Msg("restart failed")
		} else {
			m.elapsed = 0
			m.spring.snap(0)
			return m, checkDone(p)
		}
	}
	if m.queue.Advance() {
		return m.playCurrent()
	}
	m.elapsed = p.Duration()
	m.stopPlayback()
	m = m.setStatus("End of queue")
	return m, tea.SetWindowTitle("sigplay")
}

func (m Model) quit() (Model, tea.Cmd) {
	m.quitting = true
	m.visualizer = m.visualizer.Deactivate()
	m.meters = m.meters.Deactivate()
	if m.dj.cancel != nil {
		m.dj.cancel()
	}
	m.stopPlayback()
	return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
}

func (m Model) setStatus(s string) Model {
	m.status = s
	m.statusAt = time.Now()
	return m
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n  " + m.renderTabs() + "\n\n")

	switch m.view {
	case viewLibrary:
		b.WriteString(m.library.View())
		b.WriteString("\n")
	case viewNowPlaying:
		b.WriteString(m.renderNowPlaying())
	case viewVisualizer:
		b.WriteString(m.renderMiniStatus())
		b.WriteString("\n")
		b.WriteString(m.visualizer.View())
		b.WriteString("\n")
	case viewMeters:
		b.WriteString(m.renderMiniStatus())
		b.WriteString(m.meters.View())
	case viewDJ:
		b.WriteString(m.dj.View(m.height))
		return b.String()
	}

	if m.status != "" {
		b.WriteString("\n  " + statusStyle.Render(m.status) + "\n")
	}
	b.WriteString("\n  " + helpStyle.Render(playerHelp()) + "\n")
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(viewNames))
	for i, name := range viewNames {
		if viewID(i) == viewDJ && m.view != viewDJ {
			continue
		}
		if viewID(i) == m.view {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, tabStyle.Render(name))
		}
	}
	return headerStyle.Render("sigplay") + "  " + strings.Join(tabs, " ")
}

func (m Model) contentWidth() int {
	if m.width < 30 {
		return 50
	}
	return m.width
}

func (m Model) renderNowPlaying() string {
	p := m.pb.player
	if p == nil {
		return "  " + statusStyle.Render("Nothing playing. Pick a track in the library.") + "\n"
	}
	t := m.pb.track
	w := m.contentWidth()

	var b strings.Builder
	b.WriteString("  " + titleStyle.Render(util.Truncate(t.Title, w-4)) + "\n")
	switch {
	case t.Artist != "" && t.Album != "":
		b.WriteString("  " + artistStyle.Render(util.Truncate(t.Artist+" - "+t.Album, w-4)) + "\n")
	case t.Artist != "":
		b.WriteString("  " + artistStyle.Render(t.Artist) + "\n")
	}
	b.WriteString("  " + timeStyle.Render(p.Format().String()) + "\n\n")

	elapsed := util.FormatDuration(m.elapsed)
	total := util.FormatDuration(p.Duration())
	barWidth := w - len(elapsed) - len(total) - 6
	b.WriteString(fmt.Sprintf("  %s %s %s\n\n", timeStyle.Render(elapsed), renderProgressBar(m.ratio, barWidth), timeStyle.Render(total)))
	b.WriteString("  " + m.renderStatusLine(w) + "\n")

	if next := m.queue.Peek(3); len(next) > 0 && !m.pb.preview {
		b.WriteString("\n  " + headerStyle.Render("Up next") + "\n")
		for _, t := range next {
			b.WriteString("  " + artistStyle.Render(util.Truncate(t.Title+" - "+t.Artist, w-4)) + "\n")
		}
	}
	return b.String()
}

func (m Model) renderStatusLine(w int) string {
	icon, text := "▶", "playing"
	if p := m.pb.player; p == nil || p.Paused() {
		icon, text = "❚❚", "paused"
	}
	left := fmt.Sprintf("%s  %s", icon, text)
	if r := m.queue.Repeat().Icon(); r != "" {
		left += "  " + r
	}
	if m.queue.IsShuffled() {
		left += "  ⤮"
	}
	vol := renderVolumePercent(m.volume)
	gap := max(w-len([]rune(left))-len(vol)-4, 2)
	return statusStyle.Render(left) + spaces(gap) + statusStyle.Render(vol)
}

// renderMiniStatus is the one-line track summary above the visualizer.
func (m Model) renderMiniStatus() string {
	p := m.pb.player
	if p == nil {
		return "  " + statusStyle.Render("Nothing playing") + "\n"
	}
	line := fmt.Sprintf("%s  %s / %s", m.pb.track.Title, util.FormatDuration(m.elapsed), util.FormatDuration(p.Duration()))
	return "  " + titleStyle.Render(util.Truncate(line, m.contentWidth()-4)) + "\n"
}

func windowTitle(title string, paused bool) string {
	if paused {
		return "⏸ " + title + " - sigplay"
	}
	return "▶ " + title + " - sigplay"
}
