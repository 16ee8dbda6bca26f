package domain

// LoadStatus is the load phase of a single feed entry.
type LoadStatus int

const (
	LoadInitial LoadStatus = iota
	LoadLoading
	LoadLoaded
	LoadError
)

func (s LoadStatus) String() string {
	switch s {
	case LoadInitial:
		return "initial"
	case LoadLoading:
		return "loading"
	case LoadLoaded:
		return "loaded"
	case LoadError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrorKind classifies a failed entry load.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	// ErrorDefault means the fetch itself failed.
	ErrorDefault
	// ErrorNoContent means the fetch succeeded with no posts.
	ErrorNoContent
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorDefault:
		return "default"
	case ErrorNoContent:
		return "no_content"
	default:
		return ""
	}
}

// LoadState is the load state of a feed entry. Error is only meaningful
// when Status is LoadError.
type LoadState struct {
	Status LoadStatus
	Error  ErrorKind
}

var (
	stateInitial = LoadState{Status: LoadInitial}
	stateLoading = LoadState{Status: LoadLoading}
	stateLoaded  = LoadState{Status: LoadLoaded}
)

func errorState(kind ErrorKind) LoadState {
	return LoadState{Status: LoadError, Error: kind}
}

// FeedEntry is one tag's load state and posts within the feed.
type FeedEntry struct {
	Tag   ReaderTag
	State LoadState
	Items []PostItem
}

// Key returns the entry's identity within the store.
func (e FeedEntry) Key() string {
	return e.Tag.Slug
}

func (e FeedEntry) indexOf(postID, blogID int64) int {
	for i, item := range e.Items {
		if item.Is(postID, blogID) {
			return i
		}
	}
	return -1
}

// UiStatus is the screen-level status of the feed.
type UiStatus int

const (
	// UiInitial is the state before the first Start.
	UiInitial UiStatus = iota
	// UiLoaded holds one entry per started tag.
	UiLoaded
	// UiEmpty means Start was called with no tags.
	UiEmpty
)

func (s UiStatus) String() string {
	switch s {
	case UiInitial:
		return "initial"
	case UiLoaded:
		return "loaded"
	case UiEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// UiState is a snapshot of the whole feed. Snapshots are immutable once
// published: the store copies on write and never touches a published slice.
type UiState struct {
	Status       UiStatus
	Entries      []FeedEntry
	IsRefreshing bool

	// Generation increments each time Start installs a new entry set.
	Generation uint64
}

// Entry returns the entry with the given key.
func (s UiState) Entry(key string) (FeedEntry, bool) {
	for _, e := range s.Entries {
		if e.Key() == key {
			return e, true
		}
	}
	return FeedEntry{}, false
}

// FindPost returns the first item matching the post identity across all
// loaded entries.
func (s UiState) FindPost(postID, blogID int64) (PostItem, bool) {
	for _, e := range s.Entries {
		if e.State.Status != LoadLoaded {
			continue
		}
		if i := e.indexOf(postID, blogID); i >= 0 {
			return e.Items[i], true
		}
	}
	return PostItem{}, false
}

// Tags returns the ordered tag keys of the snapshot.
func (s UiState) Tags() []string {
	keys := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		keys[i] = e.Key()
	}
	return keys
}
