// Package ui is the terminal frontend. It consumes core events from the
// bus and renders them; all file and AI logic lives in the core services.
package ui

import (
	gocontext "context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	diffmp "github.com/sergi/go-diff/diffmatchpatch"

	"glance/internal/ai"
	"glance/internal/app"
	"glance/internal/event"
	"glance/internal/watch"
)

const diffSnapshotCap = 64 * 1024

// Model is the root Bubble Tea model.
type Model struct {
	app     *app.App
	events  <-chan any
	cancel  func()
	styles  *Styles
	browser *browser

	input    textinput.Model
	answer   viewport.Model
	renderer *glamour.TermRenderer

	answerRaw  string
	requestID  string
	status     string
	errText    string
	toast      string
	toastSetAt time.Time

	// snapshots holds the last seen text of selected files for change
	// summaries when the watcher reports modifications.
	snapshots map[string]string

	width, height int
	inputFocused  bool
}

// New creates the frontend model over a running app.
func New(a *app.App) *Model {
	styles := DefaultStyles()
	events, cancel := a.Bus().Subscribe()

	input := textinput.New()
	input.Placeholder = "ask about the selected files…"
	input.CharLimit = 2000

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)

	return &Model{
		app:       a,
		events:    events,
		cancel:    cancel,
		styles:    styles,
		browser:   newBrowser(a.Cache(), a.Workspace(), styles),
		input:     input,
		answer:    viewport.New(80, 20),
		renderer:  renderer,
		snapshots: make(map[string]string),
		status:    "ready",
	}
}

// Init starts listening for bus events.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return busClosedMsg{}
		}
		return busMsg{ev: ev}
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.browser.height = msg.Height - 6
		m.answer.Width = msg.Width*2/3 - 4
		m.answer.Height = msg.Height - 8
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case busMsg:
		m.handleEvent(msg.ev)
		return m, m.waitForEvent()

	case busClosedMsg:
		return m, tea.Quit

	case askSubmittedMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
		} else {
			m.requestID = msg.id
			m.answerRaw = ""
			m.answer.SetContent("")
		}
		return m, nil

	case toastExpiredMsg:
		if msg.at.Equal(m.toastSetAt) {
			m.toast = ""
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inputFocused {
		switch msg.String() {
		case "esc":
			m.inputFocused = false
			m.input.Blur()
			return m, nil
		case "enter":
			instruction := strings.TrimSpace(m.input.Value())
			if instruction == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.inputFocused = false
			m.input.Blur()
			m.refreshSnapshots()
			return m, m.ask(instruction)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.cancel()
		return m, tea.Quit
	case "up", "k":
		m.browser.moveUp()
	case "down", "j":
		m.browser.moveDown()
	case "enter", "l":
		if path, changed := m.browser.enter(); changed {
			m.app.SetPath(path)
		} else {
			m.pushSelection()
		}
	case "backspace", "h":
		if path, changed := m.browser.up(); changed {
			m.app.SetPath(path)
		}
	case " ":
		m.browser.toggleCursor()
		m.pushSelection()
	case "i", "/":
		m.inputFocused = true
		return m, m.input.Focus()
	case "esc":
		if m.requestID != "" {
			m.app.CancelRequest(m.requestID)
		}
	case "y":
		if m.answerRaw != "" {
			if err := clipboard.WriteAll(m.answerRaw); err == nil {
				m.setToast("answer copied")
			}
		}
	case "pgup":
		m.answer.HalfViewUp()
	case "pgdown":
		m.answer.HalfViewDown()
	}
	return m, m.toastCmd()
}

func (m *Model) pushSelection() {
	m.app.SetSelection(m.browser.selection)
	m.refreshSnapshots()
}

func (m *Model) ask(instruction string) tea.Cmd {
	return func() tea.Msg {
		ticket, err := m.app.Ask(gocontext.Background(), instruction)
		if err != nil {
			return askSubmittedMsg{err: err}
		}
		return askSubmittedMsg{id: ticket.ID}
	}
}

func (m *Model) handleEvent(ev any) {
	switch ev := ev.(type) {
	case event.StatusMessage:
		m.status = ev.Text
	case event.ErrorOccurred:
		m.errText = ev.Text
	case event.PathChanged, event.SelectionChanged:
		// Own actions echoed back; nothing to do.
	case event.Lagged:
		m.browser.refresh()
	case watch.Batch:
		m.handleBatch(ev)
	case ai.StateChanged:
		if ev.RequestID == m.requestID {
			m.status = "ai: " + ev.Status.String()
			if ev.Reason != "" {
				m.errText = ev.Reason
			}
		}
	case ai.ChunkReceived:
		if ev.RequestID == m.requestID {
			m.answerRaw += ev.Text
			m.renderAnswer()
		}
	case ai.Completed:
		if ev.RequestID == m.requestID {
			m.status = "ai: " + ev.Status.String()
			if ev.Status == ai.StatusCompleted {
				m.answerRaw = ev.Text
				m.renderAnswer()
			}
		}
	}
}

func (m *Model) handleBatch(batch watch.Batch) {
	m.browser.refresh()
	m.browser.prune()

	if batch.Resync {
		m.setToast("directory resynced")
		return
	}
	for _, ev := range batch.Events {
		if ev.Op == watch.OpModified && m.browser.selected[ev.Path] {
			m.showChangeSummary(ev.Path)
		}
	}
}

// showChangeSummary diffs the previously seen text of a selected file
// against its current state and toasts the net change.
func (m *Model) showChangeSummary(path string) {
	old, ok := m.snapshots[path]
	data, err := os.ReadFile(path)
	if err != nil || len(data) > diffSnapshotCap {
		return
	}
	next := string(data)
	m.snapshots[path] = next
	if !ok || old == next {
		return
	}

	dmp := diffmp.New()
	added, removed := 0, 0
	for _, d := range dmp.DiffMain(old, next, false) {
		switch d.Type {
		case diffmp.DiffInsert:
			added += len(d.Text)
		case diffmp.DiffDelete:
			removed += len(d.Text)
		}
	}
	m.setToast(fmt.Sprintf("%s changed: +%d/-%d bytes", path, added, removed))
}

func (m *Model) refreshSnapshots() {
	for _, path := range m.browser.selection {
		if _, ok := m.snapshots[path]; ok {
			continue
		}
		if data, err := os.ReadFile(path); err == nil && len(data) <= diffSnapshotCap {
			m.snapshots[path] = string(data)
		}
	}
}

func (m *Model) renderAnswer() {
	if m.renderer != nil {
		if out, err := m.renderer.Render(m.answerRaw); err == nil {
			m.answer.SetContent(out)
			m.answer.GotoBottom()
			return
		}
	}
	m.answer.SetContent(m.answerRaw)
	m.answer.GotoBottom()
}

func (m *Model) setToast(text string) {
	m.toast = text
	m.toastSetAt = time.Now()
}

func (m *Model) toastCmd() tea.Cmd {
	if m.toast == "" {
		return nil
	}
	at := m.toastSetAt
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return toastExpiredMsg{at: at}
	})
}

// View renders the two panes, input line and status line.
func (m *Model) View() string {
	if m.width == 0 {
		return "loading…"
	}

	left := m.styles.Border.Width(m.width/3 - 2).Render(m.browser.view())
	right := m.styles.Border.Width(m.width*2/3 - 2).Render(m.answer.View())
	panes := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	inputLine := m.styles.InputLabel.Render("> ") + m.input.View()

	statusLine := m.styles.Status.Render(m.status)
	if m.errText != "" {
		statusLine += "  " + m.styles.Error.Render(m.errText)
	}
	if m.toast != "" {
		statusLine += "  " + m.styles.Toast.Render(m.toast)
	}

	return lipgloss.JoinVertical(lipgloss.Left, panes, inputLine, statusLine)
}
