package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackmichael/reader-tagsfeed/internal/stream"
)

var (
	actionTag    string
	actionPostID int64
	actionBlogID int64
	showExcerpts bool
)

// showCmd prints the current feed
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current feed snapshot",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

// startCmd starts the feed
var startCmd = &cobra.Command{
	Use:   "start [slug[:display name]...]",
	Short: "Start the feed with the given tags",
	Long: `Start the feed with the given tags, in order.

Each argument is a tag slug, optionally followed by a colon and a display
name. Without arguments the server's followed tags are used.`,
	Example: `  tagsfeedctl start photography travel:Travel
  tagsfeedctl start`,
	RunE: runStart,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refetch every tag in the feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return sendAction(cmd, actionBody{Action: "refresh"})
	},
}

// likeCmd toggles the like of a post
var likeCmd = &cobra.Command{
	Use:   "like <blog_id> <post_id>",
	Short: "Toggle the like of a post",
	Args:  cobra.ExactArgs(2),
	RunE:  runLike,
}

// actionCmd sends an arbitrary display action
var actionCmd = &cobra.Command{
	Use:   "action <id>",
	Short: "Send a display action to the feed",
	Long: `Send a display action to the feed.

Tag actions (entry_visible, retry, tag_chip, more_from_tag) need --tag.
Post actions (toggle_like, site_click, post_card_click, more_menu) need
--post and --blog.`,
	Example: `  tagsfeedctl action entry_visible --tag photography
  tagsfeedctl action post_card_click --blog 7 --post 42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendAction(cmd, actionBody{
			Action: args[0],
			Tag:    actionTag,
			PostID: actionPostID,
			BlogID: actionBlogID,
		})
	},
}

// watchCmd follows the event stream
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live feed event stream",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

// tagsCmd lists followed tags
var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the followed tags",
	Args:  cobra.NoArgs,
	RunE:  runTags,
}

var tagsSetCmd = &cobra.Command{
	Use:   "set <slug[:display name]>...",
	Short: "Replace the followed tags",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTagsSet,
}

func runShow(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	snap, err := newAPIClient(serverURL).Feed(ctx)
	if err != nil {
		return err
	}
	renderSnapshot(cmd.OutOrStdout(), snap, time.Now(), showExcerpts)
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var tags []stream.TagMessage
	if len(args) > 0 {
		parsed, err := parseTagArgs(args)
		if err != nil {
			return err
		}
		tags = parsed
	}

	snap, err := newAPIClient(serverURL).Start(ctx, tags)
	if err != nil {
		return err
	}
	renderSnapshot(cmd.OutOrStdout(), snap, time.Now(), false)
	return nil
}

func runLike(cmd *cobra.Command, args []string) error {
	blogID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid blog id %q: %w", args[0], err)
	}
	postID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id %q: %w", args[1], err)
	}
	return sendAction(cmd, actionBody{Action: "toggle_like", PostID: postID, BlogID: blogID})
}

func sendAction(cmd *cobra.Command, action actionBody) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if err := newAPIClient(serverURL).Action(ctx, action); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s.\n", action.Action)
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	streamURL, err := newAPIClient(serverURL).StreamURL()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	out := cmd.OutOrStdout()
	sub := stream.NewSubscriber(streamURL, stream.HandlerFunc(func(_ context.Context, msg *stream.Message) error {
		renderMessage(out, msg, time.Now())
		return nil
	}), logger)

	fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", streamURL)
	if err := sub.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runTags(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	tags, err := newAPIClient(serverURL).Tags(ctx)
	if err != nil {
		return err
	}
	renderTags(cmd.OutOrStdout(), tags)
	return nil
}

func runTagsSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	tags, err := parseTagArgs(args)
	if err != nil {
		return err
	}
	if err := newAPIClient(serverURL).SetTags(ctx, tags); err != nil {
		return err
	}
	renderTags(cmd.OutOrStdout(), tags)
	return nil
}

// parseTagArgs turns "slug" and "slug:Display Name" arguments into tags.
func parseTagArgs(args []string) ([]stream.TagMessage, error) {
	tags := make([]stream.TagMessage, 0, len(args))
	for _, arg := range args {
		slug, name, _ := strings.Cut(arg, ":")
		slug = strings.TrimSpace(slug)
		if slug == "" {
			return nil, fmt.Errorf("tag %q has no slug", arg)
		}
		tags = append(tags, stream.TagMessage{Slug: slug, DisplayName: strings.TrimSpace(name)})
	}
	return tags, nil
}
