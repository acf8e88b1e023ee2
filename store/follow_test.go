package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yatube/yatube/models"
	"github.com/yatube/yatube/store"
)

func countFollows(t *testing.T, st *store.Store, userID, authorID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, st.DB().Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&count).Error)
	return count
}

func TestFollowIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	reader := createUser(t, st, "reader")
	author := createUser(t, st, "author")

	require.NoError(t, st.Follow(reader.ID, author.ID))
	require.NoError(t, st.Follow(reader.ID, author.ID))

	assert.Equal(t, int64(1), countFollows(t, st, reader.ID, author.ID))
	assert.True(t, st.IsFollowing(reader.ID, author.ID))
}

func TestSelfFollowRejected(t *testing.T) {
	st := newTestStore(t)
	user := createUser(t, st, "narcissus")

	err := st.Follow(user.ID, user.ID)
	assert.ErrorIs(t, err, store.ErrSelfFollow)
	assert.Equal(t, int64(0), countFollows(t, st, user.ID, user.ID))
}

func TestUnfollowMissingEdgeIsNoop(t *testing.T) {
	st := newTestStore(t)
	reader := createUser(t, st, "reader")
	author := createUser(t, st, "author")

	require.NoError(t, st.Unfollow(reader.ID, author.ID))
	assert.Equal(t, int64(0), countFollows(t, st, reader.ID, author.ID))
}

func TestUnfollowRemovesEdge(t *testing.T) {
	st := newTestStore(t)
	reader := createUser(t, st, "reader")
	author := createUser(t, st, "author")

	require.NoError(t, st.Follow(reader.ID, author.ID))
	require.NoError(t, st.Unfollow(reader.ID, author.ID))

	assert.False(t, st.IsFollowing(reader.ID, author.ID))
	// And unfollowing again still succeeds.
	require.NoError(t, st.Unfollow(reader.ID, author.ID))
}

func TestIsFollowingAnonymousAlwaysFalse(t *testing.T) {
	st := newTestStore(t)
	author := createUser(t, st, "author")
	assert.False(t, st.IsFollowing(0, author.ID))
}

func TestFollowIsDirected(t *testing.T) {
	st := newTestStore(t)
	reader := createUser(t, st, "reader")
	author := createUser(t, st, "author")

	require.NoError(t, st.Follow(reader.ID, author.ID))
	assert.True(t, st.IsFollowing(reader.ID, author.ID))
	assert.False(t, st.IsFollowing(author.ID, reader.ID))
}
