package wpcom

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/reader-tagsfeed/internal/domain"
)

const tagPostsBody = `{
	"posts": [
		{
			"ID": 42,
			"site_ID": 7,
			"feed_ID": 70,
			"site_name": "Example",
			"title": "Hello",
			"excerpt": "World",
			"URL": "https://example.com/hello",
			"featured_image": "https://example.com/hello.jpg",
			"date": "2024-05-01T12:00:00+00:00",
			"like_count": 3,
			"i_like": true,
			"is_following": true
		}
	]
}`

func TestClient_FetchNewerPostsForTag(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(tagPostsBody))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", 5)
	posts, err := client.FetchNewerPostsForTag(context.Background(), domain.ReaderTag{Slug: "black & white"})
	require.NoError(t, err)

	assert.Equal(t, "/rest/v1.2/read/tags/black%20&%20white/posts", gotPath)
	assert.Equal(t, "number=5", gotQuery)
	assert.Equal(t, "Bearer secret", gotAuth)
	require.Len(t, posts, 1)
	assert.Equal(t, domain.Post{
		PostID:                  42,
		BlogID:                  7,
		FeedID:                  70,
		Title:                   "Hello",
		Excerpt:                 "World",
		SiteName:                "Example",
		URL:                     "https://example.com/hello",
		FeaturedImage:           "https://example.com/hello.jpg",
		Date:                    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		LikeCount:               3,
		IsLikedByCurrentUser:    true,
		IsFollowedByCurrentUser: true,
	}, posts[0])
}

func TestClient_FetchEmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"posts": []}`))
	}))
	defer srv.Close()

	posts, err := NewClient(srv.URL, "", 0).FetchNewerPostsForTag(context.Background(), domain.ReaderTag{Slug: "quiet"})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestClient_FetchServerErrorWrapsPostFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"unknown_tag"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 0).FetchNewerPostsForTag(context.Background(), domain.ReaderTag{Slug: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPostFetch)
	assert.ErrorIs(t, err, domain.ErrRequestFailed)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestClient_SetLiked(t *testing.T) {
	tests := []struct {
		name     string
		liked    bool
		wantPath string
	}{
		{name: "like", liked: true, wantPath: "/rest/v1.1/sites/7/posts/42/likes/new"},
		{name: "unlike", liked: false, wantPath: "/rest/v1.1/sites/7/posts/42/likes/mine/delete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMethod, gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotPath = r.URL.Path
				w.Write([]byte(`{"success": true, "i_like": true, "like_count": 4}`))
			}))
			defer srv.Close()

			err := NewClient(srv.URL, "secret", 0).SetLiked(context.Background(), 7, 42, tt.liked)
			require.NoError(t, err)
			assert.Equal(t, http.MethodPost, gotMethod)
			assert.Equal(t, tt.wantPath, gotPath)
		})
	}
}

func TestClient_SetLikedFailures(t *testing.T) {
	t.Run("server rejects", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusForbidden)
		}))
		defer srv.Close()

		err := NewClient(srv.URL, "", 0).SetLiked(context.Background(), 7, 42, true)
		assert.ErrorIs(t, err, domain.ErrRequestFailed)
		assert.NotErrorIs(t, err, domain.ErrNoNetwork)
	})

	t.Run("success false", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"success": false}`))
		}))
		defer srv.Close()

		err := NewClient(srv.URL, "", 0).SetLiked(context.Background(), 7, 42, true)
		assert.ErrorIs(t, err, domain.ErrRequestFailed)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()

		err := NewClient(url, "", 0).SetLiked(context.Background(), 7, 42, true)
		assert.ErrorIs(t, err, domain.ErrNoNetwork)
	})
}
