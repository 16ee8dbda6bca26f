package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/blackmichael/reader-tagsfeed/internal/stream"
)

func TestRenderSnapshot(t *testing.T) {
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	snap := &stream.SnapshotMessage{
		Status:       "loaded",
		Generation:   2,
		IsRefreshing: true,
		Entries: []stream.EntryMessage{
			{
				Tag:   stream.TagMessage{Slug: "travel", DisplayName: "Travel"},
				State: "loaded",
				Posts: []stream.PostMessage{{
					PostID: 42, BlogID: 7, SiteName: "Example", Title: "Hello", Excerpt: "World",
					Date: now.Add(-48 * time.Hour), LikeCount: 1234, IsLiked: true, IsLikeButtonEnabled: false,
				}},
			},
			{Tag: stream.TagMessage{Slug: "empty"}, State: "error", Error: "no_content"},
		},
	}

	var buf bytes.Buffer
	renderSnapshot(&buf, snap, now, true)

	want := `Tags feed: loaded (generation 2, refreshing)

== Travel [loaded]
   Hello (7/42)
      Example, 2 days ago, 1,234 likes, liked, pending
      World

== empty [error: no_content]
`
	assert.Equal(t, want, buf.String())
}

func TestRenderMessage(t *testing.T) {
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	tests := map[string]struct {
		msg  stream.Message
		want string
	}{
		"snapshot": {
			msg: stream.Message{Kind: "snapshot", Snapshot: &stream.SnapshotMessage{
				Status:     "loaded",
				Generation: 1,
				Entries:    []stream.EntryMessage{{State: "loaded"}, {State: "loading"}},
			}},
			want: "snapshot  loaded gen=1 entries=2 loaded=1 refreshing=false\n",
		},
		"action with tag": {
			msg:  stream.Message{Kind: "action", Action: &stream.ActionMessage{Kind: "filter_feed", Tag: &stream.TagMessage{Slug: "travel"}}},
			want: "action    filter_feed tag=travel\n",
		},
		"action with post": {
			msg:  stream.Message{Kind: "action", Action: &stream.ActionMessage{Kind: "open_more_menu", Post: &stream.PostMessage{PostID: 42, BlogID: 7, Title: "Hello"}}},
			want: "action    open_more_menu post=7/42 \"Hello\"\n",
		},
		"navigation": {
			msg:  stream.Message{Kind: "navigation", Navigation: &stream.NavigationMessage{Kind: "post_detail", BlogID: 7, PostID: 42, URL: "https://example.com"}},
			want: "navigate  post_detail blog=7 post=42 https://example.com\n",
		},
		"error message": {
			msg:  stream.Message{Kind: "error_message", ErrorMessage: "no_network_message"},
			want: "error     no_network_message\n",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			renderMessage(&buf, &tt.msg, now)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRenderTags(t *testing.T) {
	var buf bytes.Buffer
	renderTags(&buf, nil)
	assert.Equal(t, "No followed tags.\n", buf.String())

	buf.Reset()
	renderTags(&buf, []stream.TagMessage{{Slug: "travel", DisplayName: "Travel"}, {Slug: "food"}})
	assert.Equal(t, "travel\tTravel\nfood\tfood\n", buf.String())
}
