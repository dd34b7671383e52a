package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sigplay/sigplay/internal/djagent"
	"github.com/sigplay/sigplay/internal/library"
)

const statusTick = 200 * time.Millisecond

type tickMsg time.Time

// frameMsg drives the visualizer. Frames from an earlier activation carry
// an old generation and are dropped.
type frameMsg struct{ gen int }

type playbackEndedMsg struct{ player Player }

type libraryLoadedMsg struct {
	tracks []library.Track
	err    error
}

type libraryChangedMsg struct{}

type mixStatusMsg struct{ status string }

type mixDoneMsg struct {
	result djagent.Result
	err    error
}

type mixSavedMsg struct {
	path string
	err  error
}

type previewMixMsg struct{ path string }

type closeDJMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(statusTick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
