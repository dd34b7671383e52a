package ui

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sigplay/sigplay/internal/djagent"
	"github.com/sigplay/sigplay/internal/library"
	"github.com/sigplay/sigplay/internal/util"
)

type djState int

const (
	djSelecting djState = iota
	djInstructing
	djMixing
	djReady
	djNaming
)

// MixMaker is the part of the agent client the view drives.
type MixMaker interface {
	CreateMix(ctx context.Context, req djagent.Request, onStatus func(string)) (djagent.Result, error)
}

// djView lets the user pick tracks, describe a mix, run the agent and keep
// or discard the result.
type djView struct {
	agent     MixMaker
	outputDir string
	musicDir  string

	state    djState
	tracks   []library.Track
	cursor   int
	selected map[int]bool

	instructions textinput.Model
	name         textinput.Model
	spinner      spinner.Model

	status   string
	err      error
	result   djagent.Result
	cancel   context.CancelFunc
	statusCh chan string
}

func newDJView(agent MixMaker, outputDir, musicDir string) djView {
	in := textinput.New()
	in.Placeholder = "e.g. smooth transitions, build energy towards the end"
	in.CharLimit = 500
	in.Width = 60

	name := textinput.New()
	name.Placeholder = "mix name"
	name.CharLimit = 100
	name.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return djView{
		agent:        agent,
		outputDir:    outputDir,
		musicDir:     musicDir,
		selected:     map[int]bool{},
		instructions: in,
		name:         name,
		spinner:      sp,
	}
}

func (v djView) setTracks(tracks []library.Track) djView {
	v.tracks = tracks
	v.cursor = min(v.cursor, max(len(tracks)-1, 0))
	for i := range v.selected {
		if i >= len(tracks) {
			delete(v.selected, i)
		}
	}
	return v
}

func (v djView) selectedTracks() []library.Track {
	idx := slices.Sorted(maps.Keys(v.selected))
	out := make([]library.Track, 0, len(idx))
	for _, i := range idx {
		out = append(out, v.tracks[i])
	}
	return out
}

func (v djView) Update(msg tea.Msg) (djView, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case mixStatusMsg:
		if v.state != djMixing {
			return v, nil
		}
		v.status = msg.status
		return v, waitForStatus(v.statusCh)

	case mixDoneMsg:
		if v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
		if msg.err != nil {
			v.state = djInstructing
			v.err = msg.err
			if errors.Is(msg.err, context.Canceled) {
				v.err = nil
				v.status = "Mix cancelled"
			}
			cmd := v.instructions.Focus()
			return v, cmd
		}
		v.state = djReady
		v.result = msg.result
		v.status = "Mix ready"
		v.err = nil
		return v, nil

	case mixSavedMsg:
		if msg.err != nil {
			v.err = msg.err
			v.state = djNaming
			cmd := v.name.Focus()
			return v, cmd
		}
		v = v.reset()
		v.status = "Saved to " + msg.path
		return v, nil

	case spinner.TickMsg:
		if v.state != djMixing {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v djView) handleKey(msg tea.KeyMsg) (djView, tea.Cmd) {
	switch v.state {
	case djSelecting:
		switch {
		case key.Matches(msg, keys.Back):
			return v, func() tea.Msg { return closeDJMsg{} }
		case msg.String() == "up" || msg.String() == "k":
			v.cursor = max(v.cursor-1, 0)
		case msg.String() == "down" || msg.String() == "j":
			v.cursor = min(v.cursor+1, max(len(v.tracks)-1, 0))
		case key.Matches(msg, keys.Toggle):
			if len(v.tracks) > 0 {
				if v.selected[v.cursor] {
					delete(v.selected, v.cursor)
				} else {
					v.selected[v.cursor] = true
				}
			}
		case key.Matches(msg, keys.Play):
			if len(v.selected) == 0 {
				v.err = errors.New("select at least one track with space")
				return v, nil
			}
			v.err = nil
			v.state = djInstructing
			cmd := v.instructions.Focus()
			return v, cmd
		}
		return v, nil

	case djInstructing:
		switch {
		case key.Matches(msg, keys.Back):
			v.instructions.Blur()
			v.state = djSelecting
			return v, nil
		case key.Matches(msg, keys.Play):
			return v.startMix()
		}
		var cmd tea.Cmd
		v.instructions, cmd = v.instructions.Update(msg)
		return v, cmd

	case djMixing:
		if key.Matches(msg, keys.Back) && v.cancel != nil {
			v.cancel()
			v.status = "Cancelling..."
		}
		return v, nil

	case djReady:
		switch {
		case key.Matches(msg, keys.Preview):
			path := v.result.MixPath
			return v, func() tea.Msg { return previewMixMsg{path: path} }
		case key.Matches(msg, keys.SaveMix):
			v.state = djNaming
			v.name.SetValue("")
			cmd := v.name.Focus()
			return v, cmd
		case key.Matches(msg, keys.DiscardMix), key.Matches(msg, keys.Back):
			err := djagent.DiscardMix(v.result.MixPath)
			v = v.reset()
			v.err = err
			v.status = "Mix discarded"
			return v, nil
		}
		return v, nil

	case djNaming:
		switch {
		case key.Matches(msg, keys.Back):
			v.name.Blur()
			v.state = djReady
			return v, nil
		case key.Matches(msg, keys.Play):
			if _, err := djagent.ValidateMixName(v.name.Value()); err != nil {
				v.err = err
				return v, nil
			}
			src, dir, name := v.result.MixPath, v.musicDir, v.name.Value()
			v.name.Blur()
			return v, func() tea.Msg {
				path, err := djagent.SaveMix(src, dir, name)
				return mixSavedMsg{path: path, err: err}
			}
		}
		var cmd tea.Cmd
		v.name, cmd = v.name.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v djView) startMix() (djView, tea.Cmd) {
	if v.agent == nil {
		v.err = errors.New("AI DJ is not configured: set agent.script in the config file")
		return v, nil
	}
	req := djagent.NewRequest(v.selectedTracks(), v.instructions.Value(), v.outputDir)
	if err := req.Validate(); err != nil {
		v.err = err
		return v, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	statusCh := make(chan string, 16)
	v.cancel = cancel
	v.statusCh = statusCh
	v.state = djMixing
	v.status = "Starting agent..."
	v.err = nil
	v.instructions.Blur()

	agent := v.agent
	run := func() tea.Msg {
		defer close(statusCh)
		res, err := agent.CreateMix(ctx, req, func(s string) {
			select {
			case statusCh <- s:
			default:
			}
		})
		return mixDoneMsg{result: res, err: err}
	}
	return v, tea.Batch(run, waitForStatus(statusCh), v.spinner.Tick)
}

// waitForStatus delivers agent status lines one at a time.
func waitForStatus(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return mixStatusMsg{status: s}
	}
}

func (v djView) reset() djView {
	v.state = djSelecting
	v.selected = map[int]bool{}
	v.result = djagent.Result{}
	v.instructions.SetValue("")
	v.instructions.Blur()
	v.name.Blur()
	v.statusCh = nil
	return v
}

func (v djView) View(height int) string {
	var b strings.Builder
	b.WriteString("  " + headerStyle.Render("AI DJ") + "\n\n")

	switch v.state {
	case djSelecting, djInstructing:
		if len(v.tracks) == 0 {
			b.WriteString("  " + statusStyle.Render("Library is empty.") + "\n")
			break
		}
		rows := max(height-12, 3)
		start := max(0, min(v.cursor-rows/2, len(v.tracks)-rows))
		for i := start; i < min(len(v.tracks), start+rows); i++ {
			t := v.tracks[i]
			mark := "[ ]"
			if v.selected[i] {
				mark = "[x]"
			}
			pointer := "  "
			if i == v.cursor && v.state == djSelecting {
				pointer = "> "
			}
			line := fmt.Sprintf("%s%s %s - %s", pointer, mark, t.Title, t.Artist)
			b.WriteString("  " + util.Truncate(line, 76) + "\n")
		}
		b.WriteString("\n  " + statusStyle.Render(fmt.Sprintf("%d selected", len(v.selected))) + "\n")
		if v.state == djInstructing {
			b.WriteString("\n  Instructions:\n  " + v.instructions.View() + "\n")
		}

	case djMixing:
		b.WriteString("  " + v.spinner.View() + " " + statusStyle.Render(v.status) + "\n")

	case djReady, djNaming:
		b.WriteString("  " + titleStyle.Render("Mix ready: ") + v.result.MixPath + "\n")
		for _, k := range slices.Sorted(maps.Keys(v.result.Statistics)) {
			b.WriteString("  " + artistStyle.Render(fmt.Sprintf("%s: %v", k, v.result.Statistics[k])) + "\n")
		}
		if v.state == djNaming {
			b.WriteString("\n  Save as:\n  " + v.name.View() + "\n")
		}
	}

	if v.err != nil {
		b.WriteString("\n  " + errorStyle.Render(v.err.Error()) + "\n")
	} else if v.status != "" && v.state != djMixing {
		b.WriteString("\n  " + statusStyle.Render(v.status) + "\n")
	}

	b.WriteString("\n  " + helpStyle.Render(v.help()) + "\n")
	return b.String()
}

func (v djView) help() string {
	switch v.state {
	case djSelecting:
		return helpLine(keys.Toggle, key.NewBinding(key.WithHelp("enter", "instructions")), keys.Back)
	case djInstructing:
		return helpLine(key.NewBinding(key.WithHelp("enter", "create mix")), keys.Back)
	case djMixing:
		return helpLine(key.NewBinding(key.WithHelp("esc", "cancel")))
	case djReady:
		return helpLine(keys.Preview, keys.SaveMix, keys.DiscardMix)
	default:
		return helpLine(key.NewBinding(key.WithHelp("enter", "save")), keys.Back)
	}
}
