package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	reconnectBackoff = 5 * time.Second
	statsInterval    = 30 * time.Second
	seenWindow       = 256
)

// Handler receives decoded stream messages.
type Handler interface {
	HandleMessage(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) HandleMessage(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Subscriber connects to a tags feed stream and hands every message to a
// Handler. A message id seen recently (e.g. replayed after a reconnect) is
// delivered only once.
type Subscriber struct {
	url     string
	handler Handler
	logger  *slog.Logger
	backoff time.Duration

	seen  map[string]struct{}
	order []string
}

// NewSubscriber creates a new stream subscriber for a ws:// or wss:// URL.
func NewSubscriber(streamURL string, handler Handler, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:     streamURL,
		handler: handler,
		logger:  logger,
		backoff: reconnectBackoff,
		seen:    make(map[string]struct{}, seenWindow),
	}
}

// Start connects to the stream and processes messages until the context is
// cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("stream connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.backoff):
					// backoff before reconnecting
				}
			}
		}
	}
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	s.logger.Info("connecting to stream", "url", s.url)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage when the context ends
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("connected to stream")

	var received, duplicates int64
	lastStatsLog := time.Now()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		msg, err := ParseMessage(data)
		if err != nil {
			s.logger.Error("failed to parse message", "error", err)
			continue
		}

		received++
		if !s.markSeen(msg.ID) {
			duplicates++
			continue
		}

		if err := s.handler.HandleMessage(ctx, msg); err != nil {
			s.logger.Error("failed to handle message", "kind", msg.Kind, "error", err)
		}

		if time.Since(lastStatsLog) >= statsInterval {
			s.logger.Info("stream stats",
				"messages_received", received,
				"duplicates_skipped", duplicates,
			)
			lastStatsLog = time.Now()
		}
	}
}

// markSeen records id and reports whether it was new. Messages without an
// id are always new.
func (s *Subscriber) markSeen(id string) bool {
	if id == "" {
		return true
	}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > seenWindow {
		delete(s.seen, s.order[0])
		s.order = s.order[1:]
	}
	return true
}
