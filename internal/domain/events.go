package domain

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// EventKind identifies the payload of an Event.
type EventKind string

const (
	EventSnapshot     EventKind = "snapshot"
	EventAction       EventKind = "action"
	EventErrorMessage EventKind = "error_message"
	EventNavigation   EventKind = "navigation"
)

// ActionKind is a one-shot action for the display.
type ActionKind string

const (
	ActionFilterFeed       ActionKind = "filter_feed"
	ActionOpenTagList      ActionKind = "open_tag_list"
	ActionRefreshRequested ActionKind = "refresh_requested"
	ActionShowTagsList     ActionKind = "show_tags_list"
	ActionOpenMoreMenu     ActionKind = "open_more_menu"
)

// ActionEvent asks the display to do something once. Tag is set for
// ActionFilterFeed and ActionOpenTagList; Post is the cached post for
// ActionOpenMoreMenu.
type ActionEvent struct {
	Kind ActionKind
	Tag  *ReaderTag
	Post *Post
}

// NavigationKind is a navigation target.
type NavigationKind string

const (
	NavigationBlogPreview NavigationKind = "blog_preview"
	NavigationPostDetail  NavigationKind = "post_detail"
)

// NavigationEvent asks the display to open another screen.
type NavigationEvent struct {
	Kind       NavigationKind
	BlogID     int64
	FeedID     int64
	PostID     int64
	URL        string
	IsFollowed bool
}

// Event is a single item of the event stream. Exactly one payload field is
// set, matching Kind.
type Event struct {
	ID           string
	Kind         EventKind
	Snapshot     *UiState
	Action       *ActionEvent
	ErrorMessage string
	Navigation   *NavigationEvent
}

// Hub fans events out to subscribers. Sends never block: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
	logger *slog.Logger
}

// NewHub creates a hub with no subscribers.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[uint64]chan Event),
		logger: logger,
	}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// function unsubscribes and closes the channel; it is safe to call twice.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber, assigning an ID if missing.
func (h *Hub) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.logger.Warn("subscriber buffer full, dropping event", "subscriber", id, "kind", e.Kind)
		}
	}
}

func (h *Hub) publishSnapshot(state UiState) {
	h.Publish(Event{Kind: EventSnapshot, Snapshot: &state})
}

func (h *Hub) publishAction(action ActionEvent) {
	h.Publish(Event{Kind: EventAction, Action: &action})
}

func (h *Hub) publishErrorMessage(key string) {
	h.Publish(Event{Kind: EventErrorMessage, ErrorMessage: key})
}

func (h *Hub) publishNavigation(nav NavigationEvent) {
	h.Publish(Event{Kind: EventNavigation, Navigation: &nav})
}
