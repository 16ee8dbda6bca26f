package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// DatabasePath is the SQLite file used for the post cache and followed tags.
	DatabasePath string

	// APIBaseURL is the root of the blogging REST API.
	APIBaseURL string

	// AccessToken is the bearer token sent to the REST API. Likes need it.
	AccessToken string

	// TagsFile is an optional YAML file that seeds the followed tags.
	TagsFile string

	// FollowedTags holds the tags read from TagsFile, if any.
	FollowedTags []Tag

	// MaxConcurrentFetches bounds parallel tag fetches.
	MaxConcurrentFetches int

	// PostsPerTag is how many posts each tag entry requests.
	PostsPerTag int
}

// Tag is a followed tag entry of the tags file.
type Tag struct {
	Slug        string `yaml:"slug"`
	DisplayName string `yaml:"display_name"`
}

type tagsFile struct {
	Tags []Tag `yaml:"tags"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, err := intFromEnv("PORT", 3000)
	if err != nil {
		return nil, err
	}

	maxFetches, err := intFromEnv("TAGSFEED_MAX_CONCURRENT_FETCHES", 4)
	if err != nil {
		return nil, err
	}
	if maxFetches < 1 {
		return nil, fmt.Errorf("TAGSFEED_MAX_CONCURRENT_FETCHES must be positive, got %d", maxFetches)
	}

	postsPerTag, err := intFromEnv("TAGSFEED_POSTS_PER_TAG", 10)
	if err != nil {
		return nil, err
	}
	if postsPerTag < 1 || postsPerTag > 40 {
		return nil, fmt.Errorf("TAGSFEED_POSTS_PER_TAG must be between 1 and 40, got %d", postsPerTag)
	}

	dbPath := os.Getenv("TAGSFEED_DATABASE_PATH")
	if dbPath == "" {
		dbPath = "data/tagsfeed.db"
	}

	apiURL := os.Getenv("TAGSFEED_API_URL")
	if apiURL == "" {
		apiURL = "https://public-api.wordpress.com"
	}

	cfg := &Config{
		Port:                 port,
		DatabasePath:         dbPath,
		APIBaseURL:           apiURL,
		AccessToken:          os.Getenv("TAGSFEED_ACCESS_TOKEN"),
		TagsFile:             os.Getenv("TAGSFEED_TAGS_FILE"),
		MaxConcurrentFetches: maxFetches,
		PostsPerTag:          postsPerTag,
	}

	if cfg.TagsFile != "" {
		tags, err := LoadTagsFile(cfg.TagsFile)
		if err != nil {
			return nil, err
		}
		cfg.FollowedTags = tags
	}

	return cfg, nil
}

// LoadTagsFile reads followed tags from a YAML file of the form
//
//	tags:
//	  - slug: photography
//	    display_name: Photography
func LoadTagsFile(path string) ([]Tag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tags file: %w", err)
	}

	var f tagsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tags file %s: %w", path, err)
	}

	for i, t := range f.Tags {
		if t.Slug == "" {
			return nil, fmt.Errorf("tags file %s: entry %d has no slug", path, i)
		}
	}
	return f.Tags, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
