package domain

// initialEntries builds one Initial entry per tag, collapsing duplicate
// slugs so keys stay unique. Tags with an empty slug are skipped.
func initialEntries(tags []ReaderTag) []FeedEntry {
	seen := make(map[string]struct{}, len(tags))
	entries := make([]FeedEntry, 0, len(tags))
	for _, t := range tags {
		if t.Slug == "" {
			continue
		}
		if _, dup := seen[t.Slug]; dup {
			continue
		}
		seen[t.Slug] = struct{}{}
		entries = append(entries, FeedEntry{Tag: t, State: stateInitial})
	}
	return entries
}

// sameTags reports whether current holds exactly the tags of next, in order.
func sameTags(current, next []FeedEntry) bool {
	if len(current) != len(next) {
		return false
	}
	for i := range current {
		if current[i].Tag != next[i].Tag {
			return false
		}
	}
	return true
}

// mapPostItems converts fetched posts into display items, dropping repeated
// (post, blog) pairs so item identity stays unique within the entry.
func mapPostItems(posts []Post) []PostItem {
	type identity struct{ postID, blogID int64 }
	seen := make(map[identity]struct{}, len(posts))
	items := make([]PostItem, 0, len(posts))
	for _, p := range posts {
		id := identity{p.PostID, p.BlogID}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		items = append(items, PostItem{
			PostID:              p.PostID,
			BlogID:              p.BlogID,
			SiteName:            p.SiteName,
			Title:               p.Title,
			Excerpt:             p.Excerpt,
			PostURL:             p.URL,
			FeaturedImageURL:    p.FeaturedImage,
			Date:                p.Date,
			LikeCount:           p.LikeCount,
			IsPostLiked:         p.IsLikedByCurrentUser,
			IsLikeButtonEnabled: true,
		})
	}
	return items
}

// setPostLike returns a transform that sets the like state of the post in
// a loaded entry. Entries without the post are left unchanged.
func setPostLike(postID, blogID int64, liked, buttonEnabled bool) func(FeedEntry) (FeedEntry, bool) {
	return func(e FeedEntry) (FeedEntry, bool) {
		if e.State.Status != LoadLoaded {
			return e, false
		}
		i := e.indexOf(postID, blogID)
		if i < 0 {
			return e, false
		}
		items := append([]PostItem(nil), e.Items...)
		items[i] = items[i].withLike(liked, buttonEnabled)
		e.Items = items
		return e, true
	}
}
