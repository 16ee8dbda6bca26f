package domain

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedStore(t *testing.T, publish func(UiState), slugs ...string) *Store {
	t.Helper()
	store := NewStore(publish)
	tags := make([]ReaderTag, len(slugs))
	for i, s := range slugs {
		tags[i] = ReaderTag{Slug: s}
	}
	store.Modify(func(UiState) (UiState, bool) {
		return UiState{Status: UiLoaded, Entries: initialEntries(tags)}, true
	})
	return store
}

func TestStore_UpdateMissingKeyIsNoop(t *testing.T) {
	published := 0
	store := loadedStore(t, func(UiState) { published++ }, "a", "b")
	before := store.Snapshot()

	changed := store.Update("missing", func(e FeedEntry) (FeedEntry, bool) {
		e.State = stateLoaded
		return e, true
	})

	assert.False(t, changed)
	assert.Equal(t, 1, published)
	assert.Empty(t, cmp.Diff(before, store.Snapshot()))
}

func TestStore_UpdateKeepsPositionAndKey(t *testing.T) {
	store := loadedStore(t, nil, "a", "b", "c")

	store.Update("b", func(e FeedEntry) (FeedEntry, bool) {
		e.Tag = ReaderTag{Slug: "renamed"}
		e.State = errorState(ErrorNoContent)
		return e, true
	})

	snap := store.Snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, snap.Tags())
	b, ok := snap.Entry("b")
	require.True(t, ok)
	assert.Equal(t, errorState(ErrorNoContent), b.State)
}

func TestStore_PublishedSnapshotsAreImmutable(t *testing.T) {
	var published []UiState
	store := loadedStore(t, func(s UiState) { published = append(published, s) }, "a")

	store.Update("a", func(e FeedEntry) (FeedEntry, bool) {
		e.State = stateLoaded
		e.Items = mapPostItems(makePosts(7, 1))
		return e, true
	})
	store.UpdateEach(setPostLike(1, 7, true, false))

	require.Len(t, published, 3)
	assert.Equal(t, LoadInitial, published[0].Entries[0].State.Status)
	assert.False(t, published[1].Entries[0].Items[0].IsPostLiked)
	assert.True(t, published[2].Entries[0].Items[0].IsPostLiked)
}

func TestStore_UnchangedTransformDoesNotPublish(t *testing.T) {
	published := 0
	store := loadedStore(t, func(UiState) { published++ }, "a")

	assert.False(t, store.Update("a", func(e FeedEntry) (FeedEntry, bool) { return e, false }))
	assert.Zero(t, store.UpdateEach(func(e FeedEntry) (FeedEntry, bool) { return e, false }))
	assert.Equal(t, 1, published)
}

func TestStore_ConcurrentUpdatesAreNotLost(t *testing.T) {
	const keys, perKey = 8, 50

	slugs := make([]string, keys)
	for i := range slugs {
		slugs[i] = fmt.Sprintf("tag-%d", i)
	}
	store := loadedStore(t, nil, slugs...)

	var wg sync.WaitGroup
	for _, slug := range slugs {
		for i := 0; i < perKey; i++ {
			wg.Add(1)
			go func(slug string, id int64) {
				defer wg.Done()
				store.Update(slug, func(e FeedEntry) (FeedEntry, bool) {
					e.Items = append(append([]PostItem(nil), e.Items...), PostItem{PostID: id, BlogID: 1})
					return e, true
				})
			}(slug, int64(i))
		}
	}
	wg.Wait()

	snap := store.Snapshot()
	assert.Equal(t, slugs, snap.Tags())
	for _, e := range snap.Entries {
		assert.Len(t, e.Items, perKey, "entry %s lost updates", e.Key())
	}
}
