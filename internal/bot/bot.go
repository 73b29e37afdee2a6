// Package bot wires the confirmation scheduler, the answerer and the link watcher to a chat transport.
//
// [Bot.Run] owns a single goroutine that selects between the scheduler ticker and inbound messages.
// Ticks and message handlers run to completion one at a time, so a job can never be evicted while an
// answer to it is being handled in the same process.
package bot

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackbot/internal/chat"
	"github.com/desertthunder/trackbot/internal/shared"
)

// Ticker runs one scheduler step. [confirm.Scheduler] implements it.
type Ticker interface {
	Tick(ctx context.Context) error
	Interval() time.Duration
}

// Answerer consumes messages as answers to the processing job. [confirm.Answerer] implements it.
type Answerer interface {
	HandleAnswer(ctx context.Context, msg chat.Message) (bool, error)
}

// Watcher consumes messages that may carry links. [watcher.LinkWatcher] implements it.
type Watcher interface {
	Handle(ctx context.Context, msg chat.Message) error
}

// Bot is the event loop of a running bot.
type Bot struct {
	transport chat.Transport
	scheduler Ticker
	answerer  Answerer
	watcher   Watcher
	logger    *log.Logger
}

// New creates a Bot reading from transport.
func New(transport chat.Transport, scheduler Ticker, answerer Answerer, watcher Watcher, logger *log.Logger) *Bot {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Bot{
		transport: transport,
		scheduler: scheduler,
		answerer:  answerer,
		watcher:   watcher,
		logger:    shared.WithLogger(logger, "component", "bot"),
	}
}

// Run ticks the scheduler immediately and then every interval, handling inbound messages in between.
//
// It returns nil when ctx is cancelled or the transport closes its message channel.
func (b *Bot) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.scheduler.Interval())
	defer ticker.Stop()

	messages := b.transport.Messages()
	b.logger.Info("bot started", "transport", b.transport.Name(), "interval", b.scheduler.Interval())

	b.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bot stopping", "cause", context.Cause(ctx))
			return nil
		case <-ticker.C:
			b.tick(ctx)
		case msg, ok := <-messages:
			if !ok {
				b.logger.Info("transport closed", "transport", b.transport.Name())
				return nil
			}
			b.Handle(ctx, msg)
		}
	}
}

// Handle offers msg to the answerer and then to the link watcher. Errors are logged.
func (b *Bot) Handle(ctx context.Context, msg chat.Message) {
	if _, err := b.answerer.HandleAnswer(ctx, msg); err != nil {
		b.logger.Error("answer handling failed", "id", msg.ID, "room", msg.Room, "error", err)
	}
	if err := b.watcher.Handle(ctx, msg); err != nil {
		b.logger.Error("link handling failed", "id", msg.ID, "room", msg.Room, "error", err)
	}
}

func (b *Bot) tick(ctx context.Context) {
	if err := b.scheduler.Tick(ctx); err != nil && ctx.Err() == nil {
		b.logger.Error("scheduler tick failed", "error", err)
	}
}
