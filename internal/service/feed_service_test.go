package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeout/internal/cache"
	"timeout/internal/featureflags"
	"timeout/internal/models"
	"timeout/internal/testutil"
)

func postIDs(posts []models.Post) []uint {
	ids := make([]uint, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	return ids
}

func TestFeedService_FollowersOnlyVisibility(t *testing.T) {
	f := newFixture(t)
	feeds := NewFeedService(f.deps)
	social := NewSocialService(f.deps)
	posts := NewPostService(f.deps)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	secret := testutil.CreatePost(t, f.db, alice.ID, "followers only", models.PrivacyFollowersOnly, testNow.Add(-time.Hour))
	open := testutil.CreatePost(t, f.db, alice.ID, "hello world", models.PrivacyPublic, testNow.Add(-2*time.Hour))

	got, err := feeds.UserPosts(ctx, alice.ID, bob.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{open.ID}, postIDs(got))

	got, err = feeds.UserPosts(ctx, alice.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{open.ID}, postIDs(got))

	_, err = posts.GetPost(ctx, secret.ID, bob.ID)
	assertCode(t, err, models.CodeForbidden)

	got, err = feeds.UserPosts(ctx, alice.ID, alice.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{secret.ID, open.ID}, postIDs(got))

	// Following warms bob's cached set before the toggle, so this also
	// checks the toggle drops it.
	got, err = feeds.Following(ctx, bob.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	following, err := social.ToggleFollow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, following)

	got, err = feeds.UserPosts(ctx, alice.ID, bob.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{secret.ID, open.ID}, postIDs(got))

	got, err = feeds.Following(ctx, bob.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{secret.ID, open.ID}, postIDs(got))

	post, err := posts.GetPost(ctx, secret.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "followers only", post.Content)
}

func TestFeedService_FollowingIncludesOwnPosts(t *testing.T) {
	f := newFixture(t)
	feeds := NewFeedService(f.deps)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	testutil.Follow(t, f.db, alice.ID, bob.ID)

	own := testutil.CreatePost(t, f.db, alice.ID, "mine", models.PrivacyPublic, testNow.Add(-3*time.Hour))
	followed := testutil.CreatePost(t, f.db, bob.ID, "bob's", models.PrivacyFollowersOnly, testNow.Add(-time.Hour))
	testutil.CreatePost(t, f.db, carol.ID, "stranger", models.PrivacyPublic, testNow)

	got, err := feeds.Following(context.Background(), alice.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{followed.ID, own.ID}, postIDs(got))

	got, err = feeds.Following(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFeedService_DiscoverExcludesSelfAndFollowed(t *testing.T) {
	f := newFixture(t)
	feeds := NewFeedService(f.deps)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	testutil.Follow(t, f.db, alice.ID, bob.ID)

	testutil.CreatePost(t, f.db, alice.ID, "mine", models.PrivacyPublic, testNow)
	testutil.CreatePost(t, f.db, bob.ID, "followed", models.PrivacyPublic, testNow)
	fresh := testutil.CreatePost(t, f.db, carol.ID, "fresh", models.PrivacyPublic, testNow)
	testutil.CreatePost(t, f.db, carol.ID, "hidden", models.PrivacyFollowersOnly, testNow)
	liked := testutil.CreatePost(t, f.db, carol.ID, "liked", models.PrivacyPublic, testNow.Add(-24*time.Hour))
	require.NoError(t, f.db.Create(&models.Like{UserID: bob.ID, PostID: liked.ID}).Error)

	got, err := feeds.Discover(ctx, alice.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{liked.ID, fresh.ID}, postIDs(got))

	got, err = feeds.Discover(ctx, alice.ID, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFeedService_AnonymousDiscoverIsCached(t *testing.T) {
	f := newFixture(t)
	feeds := NewFeedService(f.deps)
	ctx := context.Background()
	alice := f.user(t, "alice")

	first := testutil.CreatePost(t, f.db, alice.ID, "first", models.PrivacyPublic, testNow.Add(-time.Hour))
	got, err := feeds.Discover(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID}, postIDs(got))
	assert.True(t, f.redis.Exists(cache.DiscoverFeedKey(10)))

	second := testutil.CreatePost(t, f.db, alice.ID, "second", models.PrivacyPublic, testNow)
	got, err = feeds.Discover(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID}, postIDs(got), "served from cache")

	f.redis.FastForward(cache.DiscoverFeedTTL + time.Second)
	got, err = feeds.Discover(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{second.ID, first.ID}, postIDs(got))
}

func TestFeedService_DiscoverCacheFlagOff(t *testing.T) {
	f := newFixture(t)
	f.deps.Flags = featureflags.NewManager("discover_cache=off")
	feeds := NewFeedService(f.deps)
	alice := f.user(t, "alice")
	testutil.CreatePost(t, f.db, alice.ID, "first", models.PrivacyPublic, testNow)

	_, err := feeds.Discover(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.False(t, f.redis.Exists(cache.DiscoverFeedKey(10)))
}

func TestFeedService_BookmarksFollowVisibility(t *testing.T) {
	f := newFixture(t)
	feeds := NewFeedService(f.deps)
	social := NewSocialService(f.deps)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	secret := testutil.CreatePost(t, f.db, alice.ID, "followers only", models.PrivacyFollowersOnly, testNow)
	_, err := social.ToggleFollow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	saved, err := social.ToggleBookmark(ctx, bob.ID, secret.ID)
	require.NoError(t, err)
	require.True(t, saved)

	got, err := feeds.Bookmarked(ctx, bob.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Bookmarked)

	following, err := social.ToggleFollow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.False(t, following)

	got, err = feeds.Bookmarked(ctx, bob.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFeedService_UserPostsUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := NewFeedService(f.deps).UserPosts(context.Background(), 404, 0, 0)
	assertCode(t, err, models.CodeNotFound)
}

func TestFeedService_PageSize(t *testing.T) {
	s := &FeedService{limit: 20}
	assert.Equal(t, 20, s.pageSize(0))
	assert.Equal(t, 5, s.pageSize(5))
	assert.Equal(t, maxFeedLimit, s.pageSize(1000))
}
