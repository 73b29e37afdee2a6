package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/trackbot/internal/chat"
)

// chrome is the number of rows taken by the title, input and help lines.
const chrome = 5

// Model represents the console state.
type Model struct {
	ctx        context.Context
	console    *Console
	title      string
	keys       keyMap
	help       help.Model
	input      textinput.Model
	transcript viewport.Model
	lines      []string
	width      int
	height     int
}

// NewModel creates a console model reading replies from c.
func NewModel(ctx context.Context, c *Console, title string) *Model {
	input := textinput.New()
	input.Placeholder = "Paste a Spotify link or answer a question"
	input.Prompt = "> "
	input.CharLimit = 500
	input.Focus()

	return &Model{
		ctx:        ctx,
		console:    c,
		title:      title,
		keys:       newKeyMap(),
		help:       help.New(),
		input:      input,
		transcript: viewport.New(80, 20),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForReply())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.transcript.Width = msg.Width
		m.transcript.Height = max(msg.Height-chrome, 1)
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 1)
		m.help.Width = msg.Width
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.send):
			return m, m.send()
		case key.Matches(msg, m.keys.scrollUp):
			m.transcript.HalfPageUp()
			return m, nil
		case key.Matches(msg, m.keys.scrollDown):
			m.transcript.HalfPageDown()
			return m, nil
		}
	case Msg:
		switch msg.kind {
		case MsgReply:
			out := msg.data.(chat.Outbound)
			m.appendLine(renderReply(out))
			return m, m.waitForReply()
		case MsgDelivered:
			if d := msg.data.(delivered); d.err != nil {
				m.appendLine(styles.err.Render("not sent: " + d.err.Error()))
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.transcript.View())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// Transcript returns the rendered conversation so far.
func (m *Model) Transcript() string {
	return strings.Join(m.lines, "\n")
}

// send echoes the input line and hands it to the bot.
func (m *Model) send() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()
	m.appendLine(styles.user.Render(m.console.user+":") + " " + text)

	return func() tea.Msg {
		msg, err := m.console.Deliver(m.ctx, text)
		return deliveredMsg(msg.ID, err)
	}
}

// waitForReply blocks for the next bot reply. A closed console yields no message.
func (m *Model) waitForReply() tea.Cmd {
	c := m.console
	return func() tea.Msg {
		select {
		case out := <-c.replies:
			return replyMsg(out)
		case <-c.done:
			return nil
		}
	}
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *Model) refresh() {
	m.transcript.SetContent(m.Transcript())
	m.transcript.GotoBottom()
}

func renderReply(out chat.Outbound) string {
	prefix := "bot:"
	if out.Room != "" && out.Room != Room {
		prefix = fmt.Sprintf("bot [%s]:", out.Room)
	}
	text := out.Text
	if strings.HasPrefix(text, "Failed") {
		text = styles.warn.Render(text)
	}
	return styles.bot.Render(prefix) + " " + text
}
