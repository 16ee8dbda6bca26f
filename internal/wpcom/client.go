package wpcom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/blackmichael/reader-tagsfeed/internal/domain"
)

const (
	defaultBaseURL     = "https://public-api.wordpress.com"
	defaultPostsPerTag = 10
)

// Client is a minimal WordPress.com REST client for the reader tags feed.
// It implements domain.PostFetcher and domain.PostLiker.
type Client struct {
	baseURL     string
	accessToken string
	postsPerTag int
	httpClient  *http.Client
}

// NewClient creates a new REST client. If baseURL is empty, it defaults to
// https://public-api.wordpress.com. accessToken may be empty for anonymous
// reads; likes require it.
func NewClient(baseURL, accessToken string, postsPerTag int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if postsPerTag <= 0 {
		postsPerTag = defaultPostsPerTag
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		postsPerTag: postsPerTag,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchNewerPostsForTag returns the newest posts for a tag. Failures wrap
// domain.ErrPostFetch.
func (c *Client) FetchNewerPostsForTag(ctx context.Context, tag domain.ReaderTag) ([]domain.Post, error) {
	q := url.Values{}
	q.Set("number", strconv.Itoa(c.postsPerTag))
	path := "/rest/v1.2/read/tags/" + url.PathEscape(tag.Slug) + "/posts?" + q.Encode()

	var resp tagPostsResponse
	if err := c.do(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, fmt.Errorf("%w: tag %q: %w", domain.ErrPostFetch, tag.Slug, err)
	}

	posts := make([]domain.Post, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		posts = append(posts, p.toDomain())
	}
	return posts, nil
}

// SetLiked likes or unlikes a post on behalf of the authenticated user.
func (c *Client) SetLiked(ctx context.Context, blogID, postID int64, liked bool) error {
	action := "likes/new"
	if !liked {
		action = "likes/mine/delete"
	}
	path := fmt.Sprintf("/rest/v1.1/sites/%d/posts/%d/%s", blogID, postID, action)

	var resp likeResponse
	if err := c.do(ctx, http.MethodPost, path, &resp); err != nil {
		return fmt.Errorf("set liked %d/%d: %w", blogID, postID, err)
	}
	if !resp.Success {
		return fmt.Errorf("set liked %d/%d: %w: server reported failure", blogID, postID, domain.ErrRequestFailed)
	}
	return nil
}

// do sends a request and decodes a JSON response. Transport failures wrap
// domain.ErrNoNetwork; non-2xx responses and undecodable bodies wrap
// domain.ErrRequestFailed.
func (c *Client) do(ctx context.Context, method, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: send request: %w", domain.ErrNoNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", domain.ErrNoNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: unmarshal response: %w", domain.ErrRequestFailed, err)
		}
	}

	return nil
}

// APIError is a non-2xx response from the REST API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
}

// Is makes every API error match domain.ErrRequestFailed.
func (e *APIError) Is(target error) bool {
	return target == domain.ErrRequestFailed
}

type tagPostsResponse struct {
	Posts []postJSON `json:"posts"`
}

type postJSON struct {
	ID            int64  `json:"ID"`
	SiteID        int64  `json:"site_ID"`
	FeedID        int64  `json:"feed_ID"`
	SiteName      string `json:"site_name"`
	Title         string `json:"title"`
	Excerpt       string `json:"excerpt"`
	URL           string `json:"URL"`
	FeaturedImage string `json:"featured_image"`
	Date          string `json:"date"`
	LikeCount     int    `json:"like_count"`
	ILike         bool   `json:"i_like"`
	IsFollowing   bool   `json:"is_following"`
}

func (p postJSON) toDomain() domain.Post {
	date, _ := time.Parse(time.RFC3339, p.Date)
	return domain.Post{
		PostID:                  p.ID,
		BlogID:                  p.SiteID,
		FeedID:                  p.FeedID,
		Title:                   p.Title,
		Excerpt:                 p.Excerpt,
		SiteName:                p.SiteName,
		URL:                     p.URL,
		FeaturedImage:           p.FeaturedImage,
		Date:                    date.UTC(),
		LikeCount:               p.LikeCount,
		IsLikedByCurrentUser:    p.ILike,
		IsFollowedByCurrentUser: p.IsFollowing,
	}
}

type likeResponse struct {
	Success   bool `json:"success"`
	ILike     bool `json:"i_like"`
	LikeCount int  `json:"like_count"`
}
