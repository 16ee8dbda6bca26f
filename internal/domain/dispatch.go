package domain

import (
	"fmt"
	"sort"
)

// UserActionID identifies a display interaction.
type UserActionID string

const (
	UserActionEntryVisible  UserActionID = "entry_visible"
	UserActionRetry         UserActionID = "retry"
	UserActionRefresh       UserActionID = "refresh"
	UserActionToggleLike    UserActionID = "toggle_like"
	UserActionTagChip       UserActionID = "tag_chip"
	UserActionMoreFromTag   UserActionID = "more_from_tag"
	UserActionOpenTagsList  UserActionID = "open_tags_list"
	UserActionSiteClick     UserActionID = "site_click"
	UserActionPostCardClick UserActionID = "post_card_click"
	UserActionMoreMenu      UserActionID = "more_menu"
)

// UserAction is a display interaction routed through Dispatch. Tag is the
// entry key for tag actions; PostID and BlogID identify the post for post
// actions.
type UserAction struct {
	ID     UserActionID
	Tag    string
	PostID int64
	BlogID int64
}

type actionHandler func(UserAction) error

func (s *TagsFeedService) actionHandlers() map[UserActionID]actionHandler {
	return map[UserActionID]actionHandler{
		UserActionEntryVisible: withTag(s.OnEntryVisible),
		UserActionRetry:        withTag(s.Retry),
		UserActionTagChip:      withTag(s.OnTagChipClick),
		UserActionMoreFromTag:  withTag(s.OnMoreFromTagClick),
		UserActionRefresh: func(UserAction) error {
			s.Refresh()
			return nil
		},
		UserActionOpenTagsList: func(UserAction) error {
			s.OnOpenTagsListClick()
			return nil
		},
		UserActionToggleLike:    withPost(s.ToggleLike),
		UserActionSiteClick:     withPost(s.OnSiteClick),
		UserActionPostCardClick: withPost(s.OnPostCardClick),
		UserActionMoreMenu:      withPost(s.OnMoreMenuClick),
	}
}

// Dispatch routes a display interaction to its handler.
func (s *TagsFeedService) Dispatch(action UserAction) error {
	handler, ok := s.handlers[action.ID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action.ID)
	}
	return handler(action)
}

// UserActionIDs returns the registered action identifiers, sorted.
func (s *TagsFeedService) UserActionIDs() []UserActionID {
	ids := make([]UserActionID, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func withTag(fn func(key string)) actionHandler {
	return func(a UserAction) error {
		if a.Tag == "" {
			return fmt.Errorf("%w: %s requires a tag", ErrInvalidAction, a.ID)
		}
		fn(a.Tag)
		return nil
	}
}

func withPost(fn func(postID, blogID int64)) actionHandler {
	return func(a UserAction) error {
		if a.PostID <= 0 || a.BlogID <= 0 {
			return fmt.Errorf("%w: %s requires post and blog ids", ErrInvalidAction, a.ID)
		}
		fn(a.PostID, a.BlogID)
		return nil
	}
}
