package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/trackbot/internal/chat"
	"github.com/desertthunder/trackbot/internal/shared"
)

// Room is the room every console message is sent from.
const Room = "console"

const replyBuffer = 32

// Console is a [chat.Transport] backed by a terminal UI.
type Console struct {
	user    string
	inbound chan chat.Message
	replies chan chat.Outbound
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	now     func() time.Time
}

var _ chat.Transport = (*Console)(nil)

// NewConsole creates a console transport whose typed lines are attributed to user.
func NewConsole(user string, buffer int) *Console {
	if buffer <= 0 {
		buffer = chat.DefaultBuffer
	}
	if user == "" {
		user = "you"
	}
	return &Console{
		user:    user,
		inbound: make(chan chat.Message, buffer),
		replies: make(chan chat.Outbound, replyBuffer),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

func (c *Console) Name() string {
	return "console"
}

func (c *Console) Messages() <-chan chat.Message {
	return c.inbound
}

// SendToRoom appends a bot reply to the transcript.
func (c *Console) SendToRoom(ctx context.Context, room, text string) error {
	select {
	case c.replies <- chat.Outbound{Room: room, Text: text}:
		return nil
	case <-c.done:
		return fmt.Errorf("%w: console closed", shared.ErrServiceUnavailable)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver queues a typed line for the bot.
func (c *Console) Deliver(ctx context.Context, text string) (chat.Message, error) {
	msg := chat.Message{
		ID:     shared.GenerateID(),
		Room:   Room,
		User:   c.user,
		Text:   text,
		SentAt: c.now().UTC(),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return msg, fmt.Errorf("%w: console closed", shared.ErrServiceUnavailable)
	}

	select {
	case c.inbound <- msg:
		return msg, nil
	case <-c.done:
		return msg, fmt.Errorf("%w: console closed", shared.ErrServiceUnavailable)
	case <-ctx.Done():
		return msg, ctx.Err()
	}
}

// Close ends the session and closes the Messages channel.
func (c *Console) Close() {
	c.once.Do(func() {
		close(c.done)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.closed = true
		close(c.inbound)
	})
}

// Run shows the console until the user quits or ctx is cancelled, then closes the transport.
func (c *Console) Run(ctx context.Context, title string, opts ...tea.ProgramOption) error {
	defer c.Close()

	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(NewModel(ctx, c, title), opts...)
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return fmt.Errorf("console failed: %w", err)
	}
	return nil
}
