// Package tui is the Bubble Tea renderer: it turns a broker.BackendState
// stream into a terminal view and turns key presses into broker.Command
// values, the external collaborator described in spec.md §1/§6.
package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/qchateau/bless/internal/broker"
)

// prompt identifies which single-line input, if any, is currently capturing
// keystrokes instead of the navigation key bindings.
type prompt int

const (
	promptNone prompt = iota
	promptSearchForward
	promptSearchBackward
	promptJumpToLine
	promptJumpToRatio
	promptSaveMark
	promptLoadMark
)

// stateMsg wraps a BackendState snapshot as a tea.Msg.
type stateMsg broker.BackendState

// Model is the Bubble Tea model driving one broker session.
type Model struct {
	filePath string
	commands chan<- broker.Command
	cancelCh chan<- struct{}
	stateCh  <-chan broker.BackendState

	state broker.BackendState
	keys  KeyMap
	help  help.Model

	showHelp bool
	width    int
	height   int

	prompt      prompt
	input       textinput.Model
	lastPattern string

	// wrapOverride, when nonzero, pins the broker's wrap width instead of
	// following the terminal's own width on every resize.
	wrapOverride int
}

// New constructs a Model. commands and cancelCh are the broker's receive
// ends' counterparts: this Model only ever sends on them. stateCh is the
// broker's published state channel. wrapWidth, if nonzero, overrides the
// terminal width as the wrap column count sent with every Resize command.
func New(filePath string, commands chan<- broker.Command, cancelCh chan<- struct{}, stateCh <-chan broker.BackendState, wrapWidth int) Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 256

	return Model{
		filePath:     filePath,
		commands:     commands,
		cancelCh:     cancelCh,
		stateCh:      stateCh,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		height:       24,
		input:        ti,
		wrapOverride: wrapWidth,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForState(m.stateCh)
}

func waitForState(stateCh <-chan broker.BackendState) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-stateCh)
	}
}

// sendCommand dispatches cmd to the broker without blocking the Bubble Tea
// event loop: the channel send happens inside the returned tea.Cmd, which
// Bubble Tea runs on its own goroutine.
func sendCommand(commands chan<- broker.Command, cmd broker.Command) tea.Cmd {
	return func() tea.Msg {
		commands <- cmd
		return nil
	}
}

func sendCancel(cancelCh chan<- struct{}) tea.Cmd {
	return func() tea.Msg {
		cancelCh <- struct{}{}
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = broker.BackendState(msg)
		return m, waitForState(m.stateCh)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		viewHeight := msg.Height - 1
		if viewHeight < 1 {
			viewHeight = 1
		}
		width := msg.Width
		if m.wrapOverride != 0 {
			width = m.wrapOverride
		}
		return m, sendCommand(m.commands, broker.Resize{Width: width, Height: uint64(viewHeight)})

	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		return m, sendCancel(m.cancelCh)
	case key.Matches(msg, m.keys.Up):
		return m, sendCommand(m.commands, broker.MoveLine(-1))
	case key.Matches(msg, m.keys.Down):
		return m, sendCommand(m.commands, broker.MoveLine(1))
	case key.Matches(msg, m.keys.PageUp):
		return m, sendCommand(m.commands, broker.MoveLine(-int64(m.pageSize())))
	case key.Matches(msg, m.keys.PageDown):
		return m, sendCommand(m.commands, broker.MoveLine(int64(m.pageSize())))
	case key.Matches(msg, m.keys.Top):
		return m, sendCommand(m.commands, broker.JumpLine(1))
	case key.Matches(msg, m.keys.Bottom):
		return m, sendCommand(m.commands, broker.JumpLine(0))
	case key.Matches(msg, m.keys.Follow):
		return m, sendCommand(m.commands, broker.Follow(!m.state.Follow))
	case key.Matches(msg, m.keys.NextMatch):
		if m.lastPattern == "" {
			return m, nil
		}
		return m, sendCommand(m.commands, broker.SearchDownNext(m.lastPattern))
	case key.Matches(msg, m.keys.SearchForward):
		return m.startPrompt(promptSearchForward, "/"), nil
	case key.Matches(msg, m.keys.SearchBackward):
		return m.startPrompt(promptSearchBackward, "?"), nil
	case key.Matches(msg, m.keys.JumpToLine):
		return m.startPrompt(promptJumpToLine, ":"), nil
	case key.Matches(msg, m.keys.JumpToRatio):
		return m.startPrompt(promptJumpToRatio, "%"), nil
	case key.Matches(msg, m.keys.SaveMark):
		return m.startPrompt(promptSaveMark, "mark "), nil
	case key.Matches(msg, m.keys.LoadMark):
		return m.startPrompt(promptLoadMark, "load mark "), nil
	}
	return m, nil
}

func (m Model) startPrompt(p prompt, label string) Model {
	m.prompt = p
	m.input.Prompt = label
	m.input.SetValue("")
	m.input.Focus()
	return m
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.prompt = promptNone
		m.input.Blur()
		return m, nil
	case "enter":
		value := m.input.Value()
		p := m.prompt
		m.prompt = promptNone
		m.input.Blur()
		if (p == promptSearchForward || p == promptSearchBackward) && value != "" {
			m.lastPattern = value
		}
		return m, m.dispatchPrompt(p, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) dispatchPrompt(p prompt, value string) tea.Cmd {
	switch p {
	case promptSearchForward:
		if value == "" {
			return nil
		}
		return sendCommand(m.commands, broker.SearchDown(value))
	case promptSearchBackward:
		if value == "" {
			return nil
		}
		return sendCommand(m.commands, broker.SearchUp(value))
	case promptJumpToLine:
		line, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil
		}
		return sendCommand(m.commands, broker.JumpLine(line))
	case promptJumpToRatio:
		ratio, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil
		}
		return sendCommand(m.commands, broker.JumpFileRatio(ratio))
	case promptSaveMark:
		if value == "" {
			return nil
		}
		return sendCommand(m.commands, broker.SaveMark(value))
	case promptLoadMark:
		if value == "" {
			return nil
		}
		return sendCommand(m.commands, broker.LoadMark(value))
	}
	return nil
}

// pageSize is how many lines MoveLine moves on PageUp/PageDown.
func (m Model) pageSize() int64 {
	n := int64(m.height) - 2
	if n < 1 {
		n = 1
	}
	return n
}
