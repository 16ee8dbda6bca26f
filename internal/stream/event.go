package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/blackmichael/reader-tagsfeed/internal/domain"
)

// Message is the JSON structure pushed over the feed stream. Exactly one
// payload field is set, matching Kind.
type Message struct {
	ID           string             `json:"id"`
	Kind         string             `json:"kind"`
	Snapshot     *SnapshotMessage   `json:"snapshot,omitempty"`
	Action       *ActionMessage     `json:"action,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Navigation   *NavigationMessage `json:"navigation,omitempty"`
}

// SnapshotMessage is the wire form of domain.UiState.
type SnapshotMessage struct {
	Status       string         `json:"status"`
	IsRefreshing bool           `json:"is_refreshing"`
	Generation   uint64         `json:"generation"`
	Entries      []EntryMessage `json:"entries"`
}

// EntryMessage is the wire form of domain.FeedEntry.
type EntryMessage struct {
	Tag   TagMessage    `json:"tag"`
	State string        `json:"state"`
	Error string        `json:"error,omitempty"`
	Posts []PostMessage `json:"posts,omitempty"`
}

// TagMessage is the wire form of domain.ReaderTag.
type TagMessage struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"display_name,omitempty"`
}

// PostMessage is the wire form of domain.PostItem.
type PostMessage struct {
	PostID              int64     `json:"post_id"`
	BlogID              int64     `json:"blog_id"`
	SiteName            string    `json:"site_name"`
	Title               string    `json:"title"`
	Excerpt             string    `json:"excerpt,omitempty"`
	URL                 string    `json:"url,omitempty"`
	FeaturedImageURL    string    `json:"featured_image,omitempty"`
	Date                time.Time `json:"date"`
	LikeCount           int       `json:"like_count"`
	IsLiked             bool      `json:"is_liked"`
	IsLikeButtonEnabled bool      `json:"is_like_button_enabled"`
}

// ActionMessage is the wire form of domain.ActionEvent.
type ActionMessage struct {
	Kind string       `json:"kind"`
	Tag  *TagMessage  `json:"tag,omitempty"`
	Post *PostMessage `json:"post,omitempty"`
}

// NavigationMessage is the wire form of domain.NavigationEvent.
type NavigationMessage struct {
	Kind       string `json:"kind"`
	BlogID     int64  `json:"blog_id"`
	FeedID     int64  `json:"feed_id,omitempty"`
	PostID     int64  `json:"post_id,omitempty"`
	URL        string `json:"url,omitempty"`
	IsFollowed bool   `json:"is_followed,omitempty"`
}

// FromEvent converts a domain event to its wire form.
func FromEvent(e domain.Event) Message {
	msg := Message{
		ID:           e.ID,
		Kind:         string(e.Kind),
		ErrorMessage: e.ErrorMessage,
	}
	if e.Snapshot != nil {
		snap := FromSnapshot(*e.Snapshot)
		msg.Snapshot = &snap
	}
	if e.Action != nil {
		msg.Action = &ActionMessage{Kind: string(e.Action.Kind)}
		if e.Action.Tag != nil {
			tag := fromTag(*e.Action.Tag)
			msg.Action.Tag = &tag
		}
		if e.Action.Post != nil {
			post := fromPost(*e.Action.Post)
			msg.Action.Post = &post
		}
	}
	if e.Navigation != nil {
		n := e.Navigation
		msg.Navigation = &NavigationMessage{
			Kind:       string(n.Kind),
			BlogID:     n.BlogID,
			FeedID:     n.FeedID,
			PostID:     n.PostID,
			URL:        n.URL,
			IsFollowed: n.IsFollowed,
		}
	}
	return msg
}

// FromSnapshot converts a feed snapshot to its wire form.
func FromSnapshot(s domain.UiState) SnapshotMessage {
	msg := SnapshotMessage{
		Status:       s.Status.String(),
		IsRefreshing: s.IsRefreshing,
		Generation:   s.Generation,
		Entries:      make([]EntryMessage, len(s.Entries)),
	}
	for i, e := range s.Entries {
		entry := EntryMessage{
			Tag:   fromTag(e.Tag),
			State: e.State.Status.String(),
			Error: e.State.Error.String(),
		}
		for _, item := range e.Items {
			entry.Posts = append(entry.Posts, PostMessage{
				PostID:              item.PostID,
				BlogID:              item.BlogID,
				SiteName:            item.SiteName,
				Title:               item.Title,
				Excerpt:             item.Excerpt,
				URL:                 item.PostURL,
				FeaturedImageURL:    item.FeaturedImageURL,
				Date:                item.Date,
				LikeCount:           item.DisplayLikeCount(),
				IsLiked:             item.IsPostLiked,
				IsLikeButtonEnabled: item.IsLikeButtonEnabled,
			})
		}
		msg.Entries[i] = entry
	}
	return msg
}

// fromPost converts a cached post. Cached posts have no pending like, so the
// like button is always enabled.
func fromPost(p domain.Post) PostMessage {
	return PostMessage{
		PostID:              p.PostID,
		BlogID:              p.BlogID,
		SiteName:            p.SiteName,
		Title:               p.Title,
		Excerpt:             p.Excerpt,
		URL:                 p.URL,
		FeaturedImageURL:    p.FeaturedImage,
		Date:                p.Date,
		LikeCount:           p.LikeCount,
		IsLiked:             p.IsLikedByCurrentUser,
		IsLikeButtonEnabled: true,
	}
}

func fromTag(t domain.ReaderTag) TagMessage {
	return TagMessage{Slug: t.Slug, DisplayName: t.DisplayName}
}

// ToTag converts a wire tag to a domain tag.
func (t TagMessage) ToTag() domain.ReaderTag {
	return domain.ReaderTag{Slug: t.Slug, DisplayName: t.DisplayName}
}

// ParseMessage decodes a stream message and checks that its payload
// matches its kind.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}

	var ok bool
	switch domain.EventKind(msg.Kind) {
	case domain.EventSnapshot:
		ok = msg.Snapshot != nil
	case domain.EventAction:
		ok = msg.Action != nil
	case domain.EventErrorMessage:
		ok = msg.ErrorMessage != ""
	case domain.EventNavigation:
		ok = msg.Navigation != nil
	default:
		return nil, fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	if !ok {
		return nil, fmt.Errorf("message %s of kind %q has no payload", msg.ID, msg.Kind)
	}
	return &msg, nil
}
