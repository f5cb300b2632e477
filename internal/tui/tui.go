// Package tui provides a live shortening view for char-golf using Bubble Tea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JoobyPM/char-golf/internal/backend"
	"github.com/JoobyPM/char-golf/internal/shorten"
	"github.com/JoobyPM/char-golf/internal/stringutil"
)

const (
	debounceDelay = 150 * time.Millisecond
	remoteTimeout = 5 * time.Second
	charLimit     = 4096
)

const (
	keyEsc   = "esc"
	keyCtrlC = "ctrl+c"
	keyCtrlG = "ctrl+g"
	keyTab   = "tab"
	keyEnter = "enter"
)

const (
	colorPrimary = "#7D56F4"
	colorDim     = "#666666"
	colorError   = "#FF5F87"
	colorHelp    = "#626262"
	colorWhite   = "#FFFFFF"
	colorGreen   = "#87D787"
	colorYellow  = "#FFD787"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorDim)).
			Width(8)

	outputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWhite)).
			Bold(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGreen))

	overBudgetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorYellow))

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorPrimary)).
			Bold(true)

	itemDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorDim))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError)).
			MarginTop(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorHelp)).
			MarginTop(1)
)

// State represents the current UI state.
type State int

// State constants for the TUI lifecycle.
const (
	StateEditing State = iota
	StateAccepted
	StateQuitting
)

// ErrTUIUnexpectedModel is returned when the TUI returns an unexpected model type.
var ErrTUIUnexpectedModel = errors.New("unexpected TUI model type")

// ErrNoEngine is returned when the TUI is started without engines.
var ErrNoEngine = errors.New("no engine configured")

// Result contains the outcome of the TUI session.
type Result struct {
	// Last is the shortening shown when the session ended.
	Last backend.Result
	// Cancelled is true if the user quit without accepting.
	Cancelled bool
}

// Options configures the TUI behavior.
type Options struct {
	// Engines the user can switch between with Ctrl+G. The first is active
	// on start.
	Engines []backend.Engine
	// Mode is the initial mode.
	Mode shorten.Mode
	// Budget is shown next to the counts. Zero hides it.
	Budget int
	// Async runs each shortening as a debounced command instead of inline.
	// Set it for remote engines so typing never blocks on the network.
	Async bool
	// Initial pre-fills the input.
	Initial string
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	engines   []backend.Engine
	engineIdx int
	mode      shorten.Mode
	budget    int
	async     bool

	textInput textinput.Model
	result    backend.Result
	err       error
	state     State
	width     int
	height    int

	lastInput  string
	debounceID int
	loading    bool
}

// debounceMsg is sent after the debounce delay.
type debounceMsg struct {
	id int
}

// resultMsg carries an asynchronous shortening back to Update.
type resultMsg struct {
	id     int
	result backend.Result
	err    error
}

// New creates a new TUI model.
func New(opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Type something long..."
	ti.Focus()
	ti.CharLimit = charLimit
	ti.Width = 60
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPrimary))
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWhite))

	mode := opts.Mode
	if !mode.Valid() {
		mode = shorten.Plain
	}

	m := Model{
		engines:   opts.Engines,
		mode:      mode,
		budget:    opts.Budget,
		async:     opts.Async,
		textInput: ti,
		state:     StateEditing,
		width:     80,
		height:    24,
	}
	if opts.Initial != "" {
		m.textInput.SetValue(opts.Initial)
		m.lastInput = opts.Initial
		if !m.async {
			m = m.recompute()
		}
	}
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	if m.async && m.lastInput != "" {
		return tea.Batch(textinput.Blink, m.shortenCmd(m.lastInput, m.debounceID))
	}
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = max(20, msg.Width-12)
		return m, nil

	case debounceMsg:
		if msg.id == m.debounceID {
			return m, m.shortenCmd(m.lastInput, msg.id)
		}
		return m, nil

	case resultMsg:
		// Drop answers for input that has since changed.
		if msg.id != m.debounceID {
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.result = msg.result
		}
		return m, nil
	}

	return m, nil
}

// handleKeyMsg processes keyboard input.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyCtrlC:
		m.state = StateQuitting
		return m, tea.Quit

	case keyEsc:
		// If input has content, clear it; otherwise quit
		if m.textInput.Value() != "" {
			m.textInput.SetValue("")
			return m.changed()
		}
		m.state = StateQuitting
		return m, tea.Quit

	case keyEnter:
		// A pending or outdated async result must not be accepted for
		// the text now in the field.
		if m.stale() {
			m.debounceID++
			m.loading = false
			m = m.recompute()
			if m.err != nil {
				return m, nil
			}
		}
		m.state = StateAccepted
		return m, tea.Quit

	case keyTab:
		m.mode = nextMode(m.mode)
		return m.changed()

	case keyCtrlG:
		if len(m.engines) > 1 {
			m.engineIdx = (m.engineIdx + 1) % len(m.engines)
		}
		return m.changed()
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)

	if m.textInput.Value() != m.lastInput {
		next, changedCmd := m.changed()
		return next, tea.Batch(cmd, changedCmd)
	}
	return m, cmd
}

// changed recomputes after the input, mode or engine changed. Inline
// engines update immediately; async engines debounce.
func (m Model) changed() (tea.Model, tea.Cmd) {
	m.lastInput = m.textInput.Value()
	m.debounceID++

	if !m.async {
		return m.recompute(), nil
	}
	m.loading = true
	return m, m.debounceShorten(m.debounceID)
}

// stale reports whether m.result was not computed for the current input,
// mode and engine.
func (m Model) stale() bool {
	if m.loading || m.result.Input != m.lastInput || m.result.Mode != m.mode.String() {
		return true
	}
	eng := m.engine()
	return eng != nil && m.result.Engine != eng.Name()
}

// recompute shortens the current input inline.
func (m Model) recompute() Model {
	eng := m.engine()
	if eng == nil {
		m.err = ErrNoEngine
		return m
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	res, err := eng.Shorten(ctx, m.lastInput, m.mode)
	m.err = err
	if err == nil {
		m.result = res
	}
	return m
}

func (m Model) engine() backend.Engine {
	if len(m.engines) == 0 {
		return nil
	}
	return m.engines[m.engineIdx]
}

func nextMode(cur shorten.Mode) shorten.Mode {
	modes := shorten.Modes()
	for i, md := range modes {
		if md == cur {
			return modes[(i+1)%len(modes)]
		}
	}
	return modes[0]
}

// View renders the UI.
func (m Model) View() string {
	if m.state == StateQuitting || m.state == StateAccepted {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("char-golf"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	engineName := "none"
	if eng := m.engine(); eng != nil {
		engineName = eng.Name()
	}
	b.WriteString(labelStyle.Render("engine"))
	b.WriteString(badgeStyle.Render(engineName))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("mode"))
	b.WriteString(badgeStyle.Render(m.mode.String()))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("output"))
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	case m.loading:
		b.WriteString(itemDimStyle.Render("Shortening..."))
	case m.lastInput == "":
		b.WriteString(itemDimStyle.Render("(empty)"))
	default:
		out := stringutil.Visible(m.result.Output)
		b.WriteString(outputStyle.Render(stringutil.Ellipsize(out, max(10, m.width-10))))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("counts"))
	b.WriteString(m.renderCounts())
	b.WriteString("\n")

	b.WriteString(helpStyle.Render("Tab: mode • Ctrl+G: engine • Enter: accept • Esc: clear/quit • Ctrl+C: quit"))

	return b.String()
}

// renderCounts shows input and output lengths in code points.
func (m Model) renderCounts() string {
	in := stringutil.Len(m.lastInput)
	out := m.result.OutputLength
	if m.result.Input != m.lastInput {
		out = in
	}

	inText := fmt.Sprintf("in %d", in)
	if m.budget > 0 && in > m.budget {
		inText = overBudgetStyle.Render(inText)
	} else {
		inText = countStyle.Render(inText)
	}

	s := inText + itemDimStyle.Render(" → ") + countStyle.Render(fmt.Sprintf("out %d", out))
	if saved := in - out; saved > 0 {
		s += itemDimStyle.Render(fmt.Sprintf(" (-%d)", saved))
	}
	if m.budget > 0 {
		s += itemDimStyle.Render(fmt.Sprintf("  budget %d", m.budget))
	}
	return s
}

// debounceShorten returns a command that fires a debounceMsg after a delay.
func (m Model) debounceShorten(id int) tea.Cmd {
	return tea.Tick(debounceDelay, func(_ time.Time) tea.Msg {
		return debounceMsg{id: id}
	})
}

// shortenCmd runs the active engine off the update loop.
func (m Model) shortenCmd(input string, id int) tea.Cmd {
	eng := m.engine()
	mode := m.mode
	return func() tea.Msg {
		if eng == nil {
			return resultMsg{id: id, err: ErrNoEngine}
		}

		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()

		res, err := eng.Shorten(ctx, input, mode)
		return resultMsg{id: id, result: res, err: err}
	}
}

// GetResult returns the TUI result.
func (m Model) GetResult() Result {
	return Result{
		Last:      m.result,
		Cancelled: m.state != StateAccepted,
	}
}

// Run starts the TUI and blocks until the user accepts or quits.
func Run(opts Options) (Result, error) {
	if len(opts.Engines) == 0 {
		return Result{Cancelled: true}, ErrNoEngine
	}

	model := New(opts)
	p := tea.NewProgram(model, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return Result{Cancelled: true}, fmt.Errorf("TUI error: %w", err)
	}

	m, ok := finalModel.(Model)
	if !ok {
		return Result{Cancelled: true}, ErrTUIUnexpectedModel
	}

	return m.GetResult(), nil
}
