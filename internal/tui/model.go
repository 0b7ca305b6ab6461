// Package tui is the interactive chat front end.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HarrySoteriou/gallery/internal/rag"
)

// Chat is the TUI-facing subset of the session.
type Chat interface {
	GenerateResponse(ctx context.Context, prompt string, progress rag.ProgressFunc) (string, error)
	MemorizeText(ctx context.Context, text string) error
	ClearContext(ctx context.Context) error
	Kind() rag.Kind
}

type role int

const (
	roleUser role = iota
	roleAssistant
	roleSystem
	roleError
)

type entry struct {
	role role
	text string
}

type (
	partialMsg struct {
		text string
		ch   <-chan string
	}
	replyMsg struct {
		text string
		err  error
	}
	memorizedMsg struct {
		path string
		err  error
	}
	clearedMsg struct{ err error }
)

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	chat     Chat
	input    textinput.Model
	viewport viewport.Model
	history  []entry
	pending  string
	busy     bool
	cancel   context.CancelFunc
	status   string
	ready    bool
}

// New creates a chat model bound to ctx.
func New(ctx context.Context, chat Chat) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask something, /memorize <file> or /clear"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		chat:     chat,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   fmt.Sprintf("Backend: %s. Enter to send, esc to cancel, ctrl+c to quit.", chat.Kind()),
	}
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, chat Chat) error {
	p := tea.NewProgram(New(ctx, chat), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := historyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + bh + 1 // header, status, input box, history frame, input line
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil
	case partialMsg:
		if m.busy {
			m.pending = msg.text
			m.refresh()
		}
		return m, waitPartial(msg.ch)
	case replyMsg:
		m.finishGeneration()
		switch {
		case errors.Is(msg.err, context.Canceled):
			m.appendEntry(roleSystem, "(cancelled)")
		case msg.err != nil:
			m.appendEntry(roleError, msg.err.Error())
		default:
			m.appendEntry(roleAssistant, msg.text)
		}
		return m, nil
	case memorizedMsg:
		if msg.err != nil {
			m.appendEntry(roleError, fmt.Sprintf("memorize %s: %v", msg.path, msg.err))
		} else {
			m.appendEntry(roleSystem, "memorized "+msg.path)
		}
		return m, nil
	case clearedMsg:
		if msg.err != nil {
			m.appendEntry(roleError, "clear: "+msg.err.Error())
		} else {
			m.history = nil
			m.appendEntry(roleSystem, "context cleared")
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.busy && m.cancel != nil {
				m.cancel()
				m.status = "Cancelling..."
			}
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" || m.busy {
		return m, nil
	}
	m.input.Reset()

	switch {
	case line == "/clear":
		return m, clearCmd(m.ctx, m.chat)
	case strings.HasPrefix(line, "/memorize"):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/memorize"))
		if path == "" {
			m.appendEntry(roleError, "usage: /memorize <file>")
			return m, nil
		}
		return m, memorizeCmd(m.ctx, m.chat, path)
	}

	m.appendEntry(roleUser, line)
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.busy = true
	m.pending = ""
	m.status = "Generating... esc to cancel"
	partials := make(chan string, 16)
	return m, tea.Batch(generateCmd(ctx, m.chat, line, partials), waitPartial(partials))
}

func (m *Model) finishGeneration() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.busy = false
	m.pending = ""
	m.status = fmt.Sprintf("Backend: %s. Enter to send, esc to cancel, ctrl+c to quit.", m.chat.Kind())
}

func (m *Model) appendEntry(r role, text string) {
	m.history = append(m.history, entry{role: r, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func generateCmd(ctx context.Context, chat Chat, prompt string, partials chan<- string) tea.Cmd {
	return func() tea.Msg {
		defer close(partials)
		text, err := chat.GenerateResponse(ctx, prompt, func(partial string, done bool) {
			if done {
				return
			}
			select {
			case partials <- partial:
			default:
			}
		})
		return replyMsg{text: text, err: err}
	}
}

// waitPartial yields the next partial, or nothing once generation ends.
func waitPartial(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		text, ok := <-ch
		if !ok {
			return nil
		}
		return partialMsg{text: text, ch: ch}
	}
}

func memorizeCmd(ctx context.Context, chat Chat, path string) tea.Cmd {
	return func() tea.Msg {
		b, err := os.ReadFile(path)
		if err != nil {
			return memorizedMsg{path: path, err: err}
		}
		return memorizedMsg{path: path, err: chat.MemorizeText(ctx, string(b))}
	}
}

func clearCmd(ctx context.Context, chat Chat) tea.Cmd {
	return func() tea.Msg {
		return clearedMsg{err: chat.ClearContext(ctx)}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Gallery Chat")
	history := historyBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + history + "\n" + input + "\n" + status
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 && !m.busy {
		return "No messages yet."
	}
	var b strings.Builder
	for _, e := range m.history {
		b.WriteString(renderEntry(e))
		b.WriteString("\n\n")
	}
	if m.busy {
		b.WriteString(renderEntry(entry{role: roleAssistant, text: m.pending + "▌"}))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderEntry(e entry) string {
	switch e.role {
	case roleUser:
		return userStyle.Render("you: ") + e.text
	case roleAssistant:
		return assistantStyle.Render("assistant: ") + e.text
	case roleError:
		return errorStyle.Render("error: " + e.text)
	default:
		return systemStyle.Render(e.text)
	}
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	systemStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
