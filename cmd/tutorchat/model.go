package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brainmate-ai/tutorchat/chat"
)

var (
	tutorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	studentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Messages produced by background commands.
type (
	stateChangedMsg struct{}
	timelineMsg     struct{}
	tickMsg         struct{}
	sessionErrMsg   struct{ err error }
	passwordErrMsg  struct{ err error }
	sendErrMsg      struct{ err error }
)

type model struct {
	client  *chat.Client
	notices <-chan chat.Notice

	input    textinput.Model
	view     viewport.Model
	spin     spinner.Model
	ready    bool
	width    int
	height   int
	noticeTx string
	lastSent string
	fatalErr error
}

func newModel(client *chat.Client, notices <-chan chat.Notice) model {
	in := textinput.New()
	in.Placeholder = "Ask your tutor anything"
	in.CharLimit = 2000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{client: client, notices: notices, input: in, spin: sp}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(startSession(m.client), m.spin.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		vpHeight := msg.Height - 4
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.view = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = vpHeight
		}
		m.refreshTimeline()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.client.State() == chat.StateUninitialized {
				// A failed start leaves the machine where it was; enter
				// retries the whole negotiation.
				m.noticeTx = ""
				return m, startSession(m.client)
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				break
			}
			switch m.client.State() {
			case chat.StateAwaitingPassword:
				m.input.Reset()
				return m, submitPassword(m.client, text)
			case chat.StateActive:
				// Cleared optimistically; a failed send restores it so the
				// student can retry without retyping.
				m.lastSent = text
				m.input.Reset()
				m.noticeTx = ""
				cmds = append(cmds, sendMessage(m.client, text))
			}
		}

	case stateChangedMsg:
		if m.client.State() == chat.StateAwaitingPassword {
			m.input.Placeholder = "This tutor requires a password"
			m.input.EchoMode = textinput.EchoPassword
		} else {
			m.input.Placeholder = "Ask your tutor anything"
			m.input.EchoMode = textinput.EchoNormal
		}
		m.refreshTimeline()

	case timelineMsg:
		m.refreshTimeline()

	case tickMsg:
		m.drainNotices()
		m.refreshTimeline()
		cmds = append(cmds, tick())

	case sessionErrMsg:
		if m.client.State() == chat.StateUnavailable {
			m.fatalErr = msg.err
			return m, tea.Quit
		}
		m.noticeTx = "Could not start the session. Press enter to retry."
		m.refreshTimeline()

	case passwordErrMsg:
		if errors.Is(msg.err, chat.ErrInvalidPassword) {
			m.noticeTx = "Wrong password, try again."
		} else {
			m.noticeTx = "Could not verify the password. Try again."
		}

	case sendErrMsg:
		// The rollback already happened inside the client; the notice
		// channel carries the user-facing text.
		if m.lastSent != "" && strings.TrimSpace(m.input.Value()) == "" {
			m.input.SetValue(m.lastSent)
			m.input.CursorEnd()
		}
		m.refreshTimeline()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.view, cmd = m.view.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) drainNotices() {
	for {
		select {
		case n := <-m.notices:
			switch n.Kind {
			case chat.NoticeSendFailed:
				m.noticeTx = "Message failed to send. It was removed from the timeline; try again."
			case chat.NoticeSessionFailed:
				m.noticeTx = "Could not reach the tutor. Check your connection and retry."
			}
		default:
			return
		}
	}
}

func (m *model) refreshTimeline() {
	if !m.ready {
		return
	}
	wasAtBottom := m.view.AtBottom()
	m.view.SetContent(m.renderTimeline())
	if wasAtBottom {
		m.view.GotoBottom()
	}
}

func (m *model) renderTimeline() string {
	tutorName := "Tutor"
	if t := m.client.Tutor(); t != nil && t.Name != "" {
		tutorName = t.Name
	}
	var b strings.Builder
	for _, msg := range m.client.Messages() {
		switch msg.Role {
		case chat.RoleUser:
			label := studentStyle.Render("You")
			if !msg.Confirmed() {
				b.WriteString(pendingStyle.Render(label + " (sending) " + msg.Content))
			} else {
				b.WriteString(label + " " + msg.Content)
			}
		case chat.RoleAssistant:
			b.WriteString(tutorStyle.Render(tutorName) + " " + msg.Content)
		default:
			b.WriteString(systemStyle.Render(msg.Content))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m model) View() string {
	if !m.ready {
		return m.spin.View() + " connecting..."
	}

	status := string(m.client.State())
	switch m.client.State() {
	case chat.StateNegotiating:
		status = m.spin.View() + " connecting"
	case chat.StateActive:
		if n := m.client.PendingSends(); n > 0 {
			status = fmt.Sprintf("%s sending (%d pending)", m.spin.View(), n)
		} else if t := m.client.Tutor(); t != nil {
			status = fmt.Sprintf("chatting with %s (%s)", t.Name, t.Subject)
		}
	case chat.StateAwaitingPassword:
		status = "password required"
	}

	var footer strings.Builder
	if m.noticeTx != "" {
		footer.WriteString(noticeStyle.Render(m.noticeTx))
		footer.WriteString("\n")
	}
	footer.WriteString(m.input.View())
	footer.WriteString("\n")
	footer.WriteString(statusBarStyle.Render(status + "  •  esc to quit"))

	return m.view.View() + "\n" + footer.String()
}
