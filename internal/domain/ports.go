package domain

import (
	"context"
	"time"
)

// PostFetcher is the remote fetch capability for tag feeds.
type PostFetcher interface {
	// FetchNewerPostsForTag returns the most recent posts for the tag. An
	// empty result is not an error.
	FetchNewerPostsForTag(ctx context.Context, tag ReaderTag) ([]Post, error)
}

// PostLiker is the remote like capability.
type PostLiker interface {
	// SetLiked likes or unlikes a post. Failures wrap ErrNoNetwork when the
	// request never reached the server and ErrRequestFailed otherwise.
	SetLiked(ctx context.Context, blogID, postID int64, liked bool) error
}

// PostRepository defines persistence operations for the local post cache.
type PostRepository interface {
	// SavePosts upserts posts fetched for the given tag.
	SavePosts(ctx context.Context, tag string, posts []Post) error

	// GetBlogPost returns a cached post. Returns ErrPostNotFound if the post
	// is not cached.
	GetBlogPost(ctx context.Context, blogID, postID int64) (*Post, error)

	// SetPostLiked updates the cached liked flag of a post.
	SetPostLiked(ctx context.Context, blogID, postID int64, liked bool) error

	// DeleteOldPosts removes posts older than maxAge and any excess rows beyond
	// maxRows, keeping the most recent posts. Returns the number of rows deleted.
	DeleteOldPosts(ctx context.Context, maxAge time.Duration, maxRows int) (int64, error)
}

// TagRepository defines persistence operations for the followed tags list.
type TagRepository interface {
	// GetFollowedTags returns followed tags in display order.
	GetFollowedTags(ctx context.Context) ([]ReaderTag, error)

	// ReplaceFollowedTags replaces the whole followed tags list.
	ReplaceFollowedTags(ctx context.Context, tags []ReaderTag) error
}
