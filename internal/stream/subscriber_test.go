package stream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriber_DeliversMessagesOnce(t *testing.T) {
	frames := []string{
		`{"id":"a","kind":"error_message","error_message":"no_network_message"}`,
		`not json`,
		`{"id":"a","kind":"error_message","error_message":"no_network_message"}`,
		`{"id":"b","kind":"action","action":{"kind":"show_tags_list"}}`,
	}

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// hold the connection open until the client goes away
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		ids []string
	)
	done := make(chan struct{})
	handler := HandlerFunc(func(_ context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		ids = append(ids, msg.ID)
		if len(ids) == 2 {
			close(done)
		}
		return nil
	})

	sub := NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"), handler, slog.New(slog.NewTextHandler(io.Discard, nil)))
	errCh := make(chan error, 1)
	go func() { errCh <- sub.Start(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for messages")
	}
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"a", "b"}, ids)
}

func TestSubscriber_MarkSeenWindow(t *testing.T) {
	sub := NewSubscriber("ws://unused", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.True(t, sub.markSeen("first"))
	assert.False(t, sub.markSeen("first"))
	assert.True(t, sub.markSeen(""))
	assert.True(t, sub.markSeen(""))

	for i := 0; i < seenWindow; i++ {
		sub.markSeen(strings.Repeat("x", i+1))
	}
	assert.True(t, sub.markSeen("first"), "oldest id should have been evicted")
	assert.Len(t, sub.order, seenWindow)
}
