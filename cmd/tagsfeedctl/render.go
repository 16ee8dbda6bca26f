package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/blackmichael/reader-tagsfeed/internal/stream"
)

// renderSnapshot prints a feed snapshot as an indented outline, one block per
// tag entry. Dates are relative to now.
func renderSnapshot(w io.Writer, snap *stream.SnapshotMessage, now time.Time, excerpts bool) {
	header := fmt.Sprintf("Tags feed: %s (generation %d", snap.Status, snap.Generation)
	if snap.IsRefreshing {
		header += ", refreshing"
	}
	fmt.Fprintln(w, header+")")

	for _, e := range snap.Entries {
		state := e.State
		if e.Error != "" {
			state += ": " + e.Error
		}
		fmt.Fprintf(w, "\n== %s [%s]\n", e.Tag.ToTag().Title(), state)

		for _, p := range e.Posts {
			fmt.Fprintf(w, "   %s (%d/%d)\n", p.Title, p.BlogID, p.PostID)
			fmt.Fprintf(w, "      %s, %s, %s\n", p.SiteName, humanize.RelTime(p.Date, now, "ago", "from now"), likeLabel(p))
			if excerpts && p.Excerpt != "" {
				fmt.Fprintf(w, "      %s\n", p.Excerpt)
			}
		}
	}
}

func likeLabel(p stream.PostMessage) string {
	var b strings.Builder
	b.WriteString(humanize.Comma(int64(p.LikeCount)))
	if p.LikeCount == 1 {
		b.WriteString(" like")
	} else {
		b.WriteString(" likes")
	}
	if p.IsLiked {
		b.WriteString(", liked")
	}
	if !p.IsLikeButtonEnabled {
		b.WriteString(", pending")
	}
	return b.String()
}

// renderMessage prints one stream message on a single line.
func renderMessage(w io.Writer, msg *stream.Message, now time.Time) {
	switch {
	case msg.Snapshot != nil:
		loaded := 0
		for _, e := range msg.Snapshot.Entries {
			if e.State == "loaded" {
				loaded++
			}
		}
		fmt.Fprintf(w, "snapshot  %s gen=%d entries=%d loaded=%d refreshing=%t\n",
			msg.Snapshot.Status, msg.Snapshot.Generation, len(msg.Snapshot.Entries), loaded, msg.Snapshot.IsRefreshing)
	case msg.Action != nil:
		switch {
		case msg.Action.Tag != nil:
			fmt.Fprintf(w, "action    %s tag=%s\n", msg.Action.Kind, msg.Action.Tag.Slug)
		case msg.Action.Post != nil:
			fmt.Fprintf(w, "action    %s post=%d/%d %q\n", msg.Action.Kind, msg.Action.Post.BlogID, msg.Action.Post.PostID, msg.Action.Post.Title)
		default:
			fmt.Fprintf(w, "action    %s\n", msg.Action.Kind)
		}
	case msg.Navigation != nil:
		n := msg.Navigation
		fmt.Fprintf(w, "navigate  %s blog=%d post=%d %s\n", n.Kind, n.BlogID, n.PostID, n.URL)
	case msg.ErrorMessage != "":
		fmt.Fprintf(w, "error     %s\n", msg.ErrorMessage)
	default:
		fmt.Fprintf(w, "%-9s (empty) at %s\n", msg.Kind, now.Format(time.TimeOnly))
	}
}

func renderTags(w io.Writer, tags []stream.TagMessage) {
	if len(tags) == 0 {
		fmt.Fprintln(w, "No followed tags.")
		return
	}
	for _, t := range tags {
		fmt.Fprintf(w, "%s\t%s\n", t.Slug, t.ToTag().Title())
	}
}
