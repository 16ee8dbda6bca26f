package domain

import "time"

// ReaderTag is a followed tag. The slug is the stable key of its feed entry.
type ReaderTag struct {
	// Slug is the URL-safe tag identifier (e.g. "photography").
	Slug string

	// DisplayName is the human-readable tag title.
	DisplayName string
}

// Title returns the display name, falling back to the slug.
func (t ReaderTag) Title() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Slug
}

// Post is a reader post as returned by the remote API and stored in the
// local cache.
type Post struct {
	PostID int64
	BlogID int64
	FeedID int64

	Title         string
	Excerpt       string
	SiteName      string
	URL           string
	FeaturedImage string
	Date          time.Time
	LikeCount     int

	IsLikedByCurrentUser    bool
	IsFollowedByCurrentUser bool

	// IndexedAt is when the post was written to the cache.
	IndexedAt time.Time
}

// PostItem is the display state of a single post inside a feed entry.
// Identity is (PostID, BlogID).
type PostItem struct {
	PostID int64
	BlogID int64

	SiteName         string
	Title            string
	Excerpt          string
	PostURL          string
	FeaturedImageURL string
	Date             time.Time
	LikeCount        int

	IsPostLiked         bool
	IsLikeButtonEnabled bool
}

// Is reports whether the item is the post identified by postID and blogID.
func (p PostItem) Is(postID, blogID int64) bool {
	return p.PostID == postID && p.BlogID == blogID
}

// DisplayLikeCount is the like count to show. LikeCount itself may dip below
// zero while an unlike of a zero-count post is applied.
func (p PostItem) DisplayLikeCount() int {
	return max(p.LikeCount, 0)
}

// withLike returns a copy of p with the liked flag and button state set.
// The like count follows the flag unclamped so any toggle sequence that
// returns to the original flag restores the original count.
func (p PostItem) withLike(liked, buttonEnabled bool) PostItem {
	if p.IsPostLiked != liked {
		if liked {
			p.LikeCount++
		} else {
			p.LikeCount--
		}
	}
	p.IsPostLiked = liked
	p.IsLikeButtonEnabled = buttonEnabled
	return p
}
