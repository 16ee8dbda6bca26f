package domain

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const defaultMaxConcurrentFetches = 4

// Options tunes a TagsFeedService.
type Options struct {
	// MaxConcurrentFetches bounds the number of tag fetches running at once.
	// Zero means the default of 4.
	MaxConcurrentFetches int64
}

// TagsFeedService is the core domain service. It owns the ordered tag
// entries, fetches each tag's posts when its entry becomes visible, merges
// results back by key, and applies optimistic like toggles.
//
// A service is created at session start and released with Close. Background
// work runs on the service's own context and is cancelled by Close.
type TagsFeedService struct {
	store   *Store
	hub     *Hub
	fetcher PostFetcher
	liker   PostLiker
	posts   PostRepository
	logger  *slog.Logger
	fetches *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	inflight map[string]struct{} // tag keys with a fetch in flight

	handlers map[UserActionID]actionHandler
}

// NewTagsFeedService creates a TagsFeedService in the Initial state.
func NewTagsFeedService(fetcher PostFetcher, liker PostLiker, posts PostRepository, logger *slog.Logger, opts Options) *TagsFeedService {
	limit := opts.MaxConcurrentFetches
	if limit <= 0 {
		limit = defaultMaxConcurrentFetches
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger)
	s := &TagsFeedService{
		store:    NewStore(hub.publishSnapshot),
		hub:      hub,
		fetcher:  fetcher,
		liker:    liker,
		posts:    posts,
		logger:   logger,
		fetches:  semaphore.NewWeighted(limit),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]struct{}),
	}
	s.handlers = s.actionHandlers()
	return s
}

// Snapshot returns the current feed state.
func (s *TagsFeedService) Snapshot() UiState {
	return s.store.Snapshot()
}

// Subscribe registers for snapshot, action, error message and navigation
// events. Call the returned function to unsubscribe.
func (s *TagsFeedService) Subscribe(buffer int) (<-chan Event, func()) {
	return s.hub.Subscribe(buffer)
}

// SubscribeWithSnapshot returns the current state and a subscription taken
// in the same step: every snapshot event on the channel is newer than the
// returned state.
func (s *TagsFeedService) SubscribeWithSnapshot(buffer int) (UiState, <-chan Event, func()) {
	var (
		events      <-chan Event
		unsubscribe func()
	)
	state := s.store.View(func() {
		events, unsubscribe = s.hub.Subscribe(buffer)
	})
	return state, events, unsubscribe
}

// Start installs one Initial entry per tag. It is a no-op when the feed is
// already showing the same tags and no refresh was requested. Fetching
// starts when entries become visible.
func (s *TagsFeedService) Start(tags []ReaderTag) {
	next := initialEntries(tags)
	changed := s.store.Modify(func(st UiState) (UiState, bool) {
		if st.Status == UiLoaded && !st.IsRefreshing && sameTags(st.Entries, next) {
			return st, false
		}
		if len(next) == 0 {
			if st.Status == UiEmpty {
				return st, false
			}
			return UiState{Status: UiEmpty, Generation: st.Generation + 1}, true
		}
		return UiState{Status: UiLoaded, Entries: next, Generation: st.Generation + 1}, true
	})
	if changed {
		s.logger.Info("tags feed started", "tags", len(next))
	}
}

// OnEntryVisible fetches the entry's posts if it has not been loaded yet.
// Entries that are loading, loaded or failed are left alone, so repeated
// visibility never starts a second fetch. The Initial check and the key
// claim happen under the store lock, so a visibility call on a settled entry
// never holds the key.
func (s *TagsFeedService) OnEntryVisible(key string) {
	var tag ReaderTag
	claimed := s.store.Update(key, func(e FeedEntry) (FeedEntry, bool) {
		if e.State.Status != LoadInitial || !s.acquireKey(key) {
			return e, false
		}
		tag = e.Tag
		e.State = stateLoading
		e.Items = nil
		return e, true
	})
	if !claimed {
		return
	}

	launched := s.launch(func(ctx context.Context) {
		defer s.releaseKey(key)
		s.fetchTag(ctx, tag)
	})
	if !launched {
		s.abandonFetch(key)
	}
}

// Retry re-runs the fetch of an entry that ended in an error state.
func (s *TagsFeedService) Retry(key string) {
	reset := s.store.Update(key, func(e FeedEntry) (FeedEntry, bool) {
		if e.State.Status != LoadError {
			return e, false
		}
		e.State = stateInitial
		e.Items = nil
		return e, true
	})
	if reset {
		s.OnEntryVisible(key)
	}
}

// Refresh marks the feed as refreshing, emits a refresh action, and
// re-fetches every entry. The refreshing flag clears once all fetches of
// this cycle have settled, unless Start replaced the entries meanwhile.
func (s *TagsFeedService) Refresh() {
	var (
		gen     uint64
		entries []FeedEntry
	)
	started := s.store.Modify(func(st UiState) (UiState, bool) {
		if st.Status != UiLoaded {
			return st, false
		}
		gen = st.Generation
		entries = st.Entries
		st.IsRefreshing = true
		return st, true
	})
	if !started {
		return
	}
	s.hub.publishAction(ActionEvent{Kind: ActionRefreshRequested})

	var cycle sync.WaitGroup
	for _, e := range entries {
		key, tag := e.Key(), e.Tag
		// a held key is a fetch already in flight; its result is fresh enough
		claimed := s.store.Update(key, func(e FeedEntry) (FeedEntry, bool) {
			if !s.acquireKey(key) {
				return e, false
			}
			e.State = stateLoading
			e.Items = nil
			return e, true
		})
		if !claimed {
			continue
		}

		cycle.Add(1)
		launched := s.launch(func(ctx context.Context) {
			defer cycle.Done()
			defer s.releaseKey(key)
			s.fetchTag(ctx, tag)
		})
		if !launched {
			cycle.Done()
			s.abandonFetch(key)
		}
	}

	finished := s.launch(func(context.Context) {
		cycle.Wait()
		s.endRefresh(gen)
	})
	if !finished {
		s.endRefresh(gen)
	}
}

// endRefresh clears the refreshing flag unless Start replaced the entries
// since the refresh of generation gen began.
func (s *TagsFeedService) endRefresh(gen uint64) {
	s.store.Modify(func(st UiState) (UiState, bool) {
		if st.Generation != gen || !st.IsRefreshing {
			return st, false
		}
		st.IsRefreshing = false
		return st, true
	})
}

// ToggleLike flips the liked state of a post immediately and confirms it
// remotely. The like button stays disabled until the remote call settles;
// a failure reverts the flag and emits an error message. Toggling a post
// that is not in the feed, or whose toggle is still pending, does nothing.
func (s *TagsFeedService) ToggleLike(postID, blogID int64) {
	var desired bool
	applied := s.store.Modify(func(st UiState) (UiState, bool) {
		item, ok := st.FindPost(postID, blogID)
		if !ok || !item.IsLikeButtonEnabled {
			return st, false
		}
		desired = !item.IsPostLiked
		next, n := applyEach(st, setPostLike(postID, blogID, desired, false))
		return next, n > 0
	})
	if !applied {
		return
	}

	launched := s.launch(func(ctx context.Context) {
		s.likePostRemote(ctx, postID, blogID, desired)
	})
	if !launched {
		s.store.UpdateEach(setPostLike(postID, blogID, !desired, true))
	}
}

func (s *TagsFeedService) likePostRemote(ctx context.Context, postID, blogID int64, desired bool) {
	err := s.liker.SetLiked(ctx, blogID, postID, desired)
	if err == nil {
		s.store.UpdateEach(setPostLike(postID, blogID, desired, true))
		if err := s.posts.SetPostLiked(ctx, blogID, postID, desired); err != nil && !errors.Is(err, ErrPostNotFound) {
			s.logger.Error("failed to persist like", "post_id", postID, "blog_id", blogID, "error", err)
		}
		return
	}

	s.logger.Warn("like request failed, reverting",
		"post_id", postID,
		"blog_id", blogID,
		"liked", desired,
		"error", err,
	)
	s.store.UpdateEach(setPostLike(postID, blogID, !desired, true))
	s.hub.publishErrorMessage(likeErrorMessage(err))
}

// OnTagChipClick asks the display to filter the feed by the tag.
func (s *TagsFeedService) OnTagChipClick(key string) {
	tag := s.tagFor(key)
	s.hub.publishAction(ActionEvent{Kind: ActionFilterFeed, Tag: &tag})
}

// OnMoreFromTagClick asks the display to open the tag's post list.
func (s *TagsFeedService) OnMoreFromTagClick(key string) {
	tag := s.tagFor(key)
	s.hub.publishAction(ActionEvent{Kind: ActionOpenTagList, Tag: &tag})
}

// OnOpenTagsListClick asks the display to show the followed tags list.
func (s *TagsFeedService) OnOpenTagsListClick() {
	s.hub.publishAction(ActionEvent{Kind: ActionShowTagsList})
}

// OnMoreMenuClick asks the display to open the more menu of a cached post.
func (s *TagsFeedService) OnMoreMenuClick(postID, blogID int64) {
	s.launch(func(ctx context.Context) {
		post, ok := s.findPost(ctx, postID, blogID)
		if !ok {
			return
		}
		s.hub.publishAction(ActionEvent{Kind: ActionOpenMoreMenu, Post: post})
	})
}

// OnSiteClick opens the blog preview of a cached post.
func (s *TagsFeedService) OnSiteClick(postID, blogID int64) {
	s.launch(func(ctx context.Context) {
		post, ok := s.findPost(ctx, postID, blogID)
		if !ok {
			return
		}
		s.hub.publishNavigation(NavigationEvent{
			Kind:       NavigationBlogPreview,
			BlogID:     post.BlogID,
			FeedID:     post.FeedID,
			IsFollowed: post.IsFollowedByCurrentUser,
		})
	})
}

// OnPostCardClick opens the detail of a cached post.
func (s *TagsFeedService) OnPostCardClick(postID, blogID int64) {
	s.launch(func(ctx context.Context) {
		post, ok := s.findPost(ctx, postID, blogID)
		if !ok {
			return
		}
		s.hub.publishNavigation(NavigationEvent{
			Kind:   NavigationPostDetail,
			BlogID: post.BlogID,
			PostID: post.PostID,
			URL:    post.URL,
		})
	})
}

// Wait blocks until all background work launched so far has finished.
func (s *TagsFeedService) Wait() {
	s.wg.Wait()
}

// Close cancels background work and waits for it to finish. Operations
// called after Close do not start new background work.
func (s *TagsFeedService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// StartCleanupJob runs a background loop that prunes the post cache of
// posts older than maxAge and caps the total at maxRows. It runs immediately
// on start and then repeats at the given interval. It blocks until ctx is
// cancelled.
func (s *TagsFeedService) StartCleanupJob(ctx context.Context, interval time.Duration, maxAge time.Duration, maxRows int) {
	s.runCleanup(ctx, maxAge, maxRows)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCleanup(ctx, maxAge, maxRows)
		}
	}
}

func (s *TagsFeedService) runCleanup(ctx context.Context, maxAge time.Duration, maxRows int) {
	deleted, err := s.posts.DeleteOldPosts(ctx, maxAge, maxRows)
	if err != nil {
		s.logger.Error("post cleanup failed", "error", err)
	} else if deleted > 0 {
		s.logger.Info("post cleanup complete", "deleted", deleted)
	}
}

// fetchTag loads a tag's posts and merges the result into its entry.
func (s *TagsFeedService) fetchTag(ctx context.Context, tag ReaderTag) {
	state, items := s.loadTag(ctx, tag)
	s.reconcile(tag.Slug, state, items)
}

func (s *TagsFeedService) loadTag(ctx context.Context, tag ReaderTag) (LoadState, []PostItem) {
	if err := s.fetches.Acquire(ctx, 1); err != nil {
		return errorState(ErrorDefault), nil
	}
	defer s.fetches.Release(1)

	posts, err := s.fetcher.FetchNewerPostsForTag(ctx, tag)
	if err != nil {
		s.logger.Warn("tag fetch failed", "tag", tag.Slug, "error", err)
		return errorState(fetchErrorKind(err)), nil
	}
	if len(posts) == 0 {
		s.logger.Debug("tag has no posts", "tag", tag.Slug)
		return errorState(ErrorNoContent), nil
	}

	if err := s.posts.SavePosts(ctx, tag.Slug, posts); err != nil {
		s.logger.Error("failed to cache posts", "tag", tag.Slug, "error", err)
	}
	return stateLoaded, mapPostItems(posts)
}

// reconcile replaces the state and items of the entry with the given key,
// keeping its position. Results for keys no longer in the feed are dropped.
func (s *TagsFeedService) reconcile(key string, state LoadState, items []PostItem) {
	merged := s.store.Update(key, func(e FeedEntry) (FeedEntry, bool) {
		e.State = state
		e.Items = items
		return e, true
	})
	if !merged {
		s.logger.Debug("discarding result for tag no longer in feed", "tag", key)
	}
}

func (s *TagsFeedService) findPost(ctx context.Context, postID, blogID int64) (*Post, bool) {
	post, err := s.posts.GetBlogPost(ctx, blogID, postID)
	if err != nil {
		if !errors.Is(err, ErrPostNotFound) {
			s.logger.Error("failed to load cached post", "post_id", postID, "blog_id", blogID, "error", err)
		}
		return nil, false
	}
	return post, true
}

func (s *TagsFeedService) tagFor(key string) ReaderTag {
	if e, ok := s.store.Snapshot().Entry(key); ok {
		return e.Tag
	}
	return ReaderTag{Slug: key}
}

func (s *TagsFeedService) acquireKey(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *TagsFeedService) releaseKey(key string) {
	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
}

// abandonFetch undoes a claim whose fetch could not be launched: the entry
// goes back to Initial so a later visibility call can fetch it.
func (s *TagsFeedService) abandonFetch(key string) {
	s.store.Update(key, func(e FeedEntry) (FeedEntry, bool) {
		if e.State.Status != LoadLoading {
			return e, false
		}
		e.State = stateInitial
		return e, true
	})
	s.releaseKey(key)
}

// launch runs fn in the background on the service context. It returns false
// once the service is closed.
func (s *TagsFeedService) launch(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
	return true
}
