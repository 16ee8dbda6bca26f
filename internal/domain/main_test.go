package domain

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// TestMain ensures fetch and like goroutines never outlive a closed service.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fetchResult struct {
	posts []Post
	err   error
}

// fakeFetcher returns canned results per tag. A tag with a gate blocks until
// the gate is closed.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string]fetchResult
	gates   map[string]chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:   make(map[string]int),
		results: make(map[string]fetchResult),
		gates:   make(map[string]chan struct{}),
	}
}

func (f *fakeFetcher) respond(tag string, posts []Post, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[tag] = fetchResult{posts: posts, err: err}
}

func (f *fakeFetcher) hold(tag string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[tag] = gate
	return gate
}

func (f *fakeFetcher) callsFor(tag string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tag]
}

func (f *fakeFetcher) FetchNewerPostsForTag(ctx context.Context, tag ReaderTag) ([]Post, error) {
	f.mu.Lock()
	f.calls[tag.Slug]++
	gate := f.gates[tag.Slug]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	res := f.results[tag.Slug]
	return res.posts, res.err
}

type likeCall struct {
	blogID, postID int64
	liked          bool
}

// fakeLiker answers like calls with queued errors (nil when the queue is
// empty). When gate is set every call blocks until it is closed.
type fakeLiker struct {
	mu    sync.Mutex
	errs  []error
	calls []likeCall
	gate  chan struct{}
}

func (f *fakeLiker) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *fakeLiker) hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeLiker) recorded() []likeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]likeCall(nil), f.calls...)
}

func (f *fakeLiker) SetLiked(ctx context.Context, blogID, postID int64, liked bool) error {
	f.mu.Lock()
	f.calls = append(f.calls, likeCall{blogID: blogID, postID: postID, liked: liked})
	gate := f.gate
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

type postKey struct{ blogID, postID int64 }

// fakeRepo is an in-memory PostRepository.
type fakeRepo struct {
	mu       sync.Mutex
	posts    map[postKey]Post
	liked    map[postKey]bool
	cleanups int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		posts: make(map[postKey]Post),
		liked: make(map[postKey]bool),
	}
}

func (r *fakeRepo) SavePosts(_ context.Context, _ string, posts []Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range posts {
		r.posts[postKey{p.BlogID, p.PostID}] = p
	}
	return nil
}

func (r *fakeRepo) GetBlogPost(_ context.Context, blogID, postID int64) (*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postKey{blogID, postID}]
	if !ok {
		return nil, ErrPostNotFound
	}
	return &p, nil
}

func (r *fakeRepo) SetPostLiked(_ context.Context, blogID, postID int64, liked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liked[postKey{blogID, postID}] = liked
	return nil
}

func (r *fakeRepo) DeleteOldPosts(context.Context, time.Duration, int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups++
	return 0, nil
}

func makePosts(blogID int64, postIDs ...int64) []Post {
	posts := make([]Post, len(postIDs))
	for i, id := range postIDs {
		posts[i] = Post{
			PostID:    id,
			BlogID:    blogID,
			Title:     "post",
			SiteName:  "site",
			URL:       "https://example.com/post",
			Date:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			LikeCount: 2,
		}
	}
	return posts
}

// drain collects everything currently buffered on events.
func drain(events <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func ofKind(events []Event, kind EventKind) []Event {
	var out []Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
