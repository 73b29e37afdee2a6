package chat

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackbot/internal/services"
	"github.com/desertthunder/trackbot/internal/shared"
)

// DefaultBuffer is the inbound queue length of a [Webhook].
const DefaultBuffer = 64

// maxBodyBytes caps inbound webhook payloads.
const maxBodyBytes = 64 << 10

// Webhook is a [Transport] that hears messages POSTed to it and replies through an outgoing webhook.
type Webhook struct {
	out     *services.WebhookService
	secret  string
	inbound chan Message
	logger  *log.Logger

	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// NewWebhook creates a webhook transport. Requests must carry secret in [services.SecretHeader] unless it is empty.
func NewWebhook(out *services.WebhookService, secret string, buffer int, logger *log.Logger) *Webhook {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Webhook{
		out:     out,
		secret:  secret,
		inbound: make(chan Message, buffer),
		logger:  shared.WithLogger(logger, "component", "webhook"),
		done:    make(chan struct{}),
	}
}

func (w *Webhook) Name() string {
	return "webhook"
}

func (w *Webhook) Messages() <-chan Message {
	return w.inbound
}

// SendToRoom posts {room, text} to the outgoing webhook.
func (w *Webhook) SendToRoom(ctx context.Context, room, text string) error {
	if _, err := w.out.Post(ctx, Outbound{Room: room, Text: text}); err != nil {
		return fmt.Errorf("failed to send to %s: %w", room, err)
	}
	return nil
}

// Deliver queues msg for the bot, waiting for room in the buffer until ctx is done.
func (w *Webhook) Deliver(ctx context.Context, msg Message) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return fmt.Errorf("%w: webhook transport closed", shared.ErrServiceUnavailable)
	}

	select {
	case w.inbound <- msg:
		return nil
	case <-w.done:
		return fmt.Errorf("%w: webhook transport closed", shared.ErrServiceUnavailable)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops delivery and closes the Messages channel. Blocked deliveries fail.
func (w *Webhook) Close() {
	w.once.Do(func() {
		close(w.done)

		w.mu.Lock()
		defer w.mu.Unlock()
		w.closed = true
		close(w.inbound)
	})
}

// ServeHTTP accepts a JSON [Message] and queues it.
//
// Missing ids are generated and missing timestamps set to now. A full buffer answers 503 once the request
// context ends.
func (w *Webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(services.SecretHeader)), []byte(w.secret)) != 1 {
		http.Error(rw, "invalid secret", http.StatusUnauthorized)
		return
	}

	var msg Message
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		http.Error(rw, "invalid message payload", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(msg.Room) == "" || msg.Text == "" {
		http.Error(rw, "room and text are required", http.StatusBadRequest)
		return
	}
	if msg.ID == "" {
		msg.ID = shared.GenerateID()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}

	if err := w.Deliver(r.Context(), msg); err != nil {
		w.logger.Warn("dropped inbound message", "id", msg.ID, "room", msg.Room, "error", err)
		http.Error(rw, "bot unavailable", http.StatusServiceUnavailable)
		return
	}

	w.logger.Debug("message received", "id", msg.ID, "room", msg.Room, "user", msg.User)

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusAccepted)
	json.NewEncoder(rw).Encode(map[string]string{"id": msg.ID})
}
