package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"timeout/internal/cache"
	"timeout/internal/models"
	"timeout/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seedNow = time.Date(2025, time.February, 10, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewStore(client), mr
}

func TestSeed_CountsMatchRows(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	sum, err := Seed(context.Background(), db, Options{
		NumUsers:      4,
		PostsPerUser:  2,
		EventsPerUser: 3,
		NotesPerUser:  2,
		SkipBcrypt:    true,
		RandSeed:      42,
		Now:           seedNow,
	})
	require.NoError(t, err)

	var users, events, comments, likes, follows, notes, posts int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Event{}).Count(&events).Error)
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	require.NoError(t, db.Model(&models.Follow{}).Count(&follows).Error)
	require.NoError(t, db.Model(&models.Note{}).Count(&notes).Error)
	require.NoError(t, db.Model(&models.Post{}).Where("event_id IS NULL").Count(&posts).Error)

	assert.Equal(t, 4, sum.Users)
	assert.EqualValues(t, sum.Users, users)
	assert.EqualValues(t, sum.Events, events)
	assert.Equal(t, 12, sum.Events+sum.Conflicts)
	assert.EqualValues(t, sum.Posts, posts)
	assert.Equal(t, 8, sum.Posts)
	assert.EqualValues(t, sum.Comments, comments)
	assert.EqualValues(t, sum.Likes, likes)
	assert.EqualValues(t, sum.Follows, follows)
	assert.EqualValues(t, 8, notes)
	assert.Equal(t, 8, sum.Notes)
}

func TestSeed_PublicEventsGetMirrorPosts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	_, err := Seed(context.Background(), db, Options{
		NumUsers: 2, EventsPerUser: 10, SkipBcrypt: true, RandSeed: 7, Now: seedNow,
	})
	require.NoError(t, err)

	var public, mirrors int64
	require.NoError(t, db.Model(&models.Event{}).Where("visibility = ?", models.VisibilityPublic).Count(&public).Error)
	require.NoError(t, db.Model(&models.Post{}).Where("event_id IS NOT NULL").Count(&mirrors).Error)
	assert.Equal(t, public, mirrors)
}

func TestSeed_DryRunWritesNothing(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	sum, err := Seed(context.Background(), db, Options{
		NumUsers: 3, PostsPerUser: 2, EventsPerUser: 2, DryRun: true, SkipBcrypt: true, RandSeed: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Users)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}

func TestFactory_DryRunAssignsSyntheticIDs(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, SkipBcrypt: true, RandSeed: 3, Now: seedNow})

	a, err := f.CreateUser()
	require.NoError(t, err)
	b, err := f.CreateUser(func(u *models.User) { u.Username = "fixed" })
	require.NoError(t, err)
	p, err := f.CreatePost(a)
	require.NoError(t, err)

	assert.NotZero(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "fixed", b.Username)
	assert.Equal(t, DefaultPassword, a.Password)
	assert.Equal(t, a.ID, p.AuthorID)
	assert.False(t, p.CreatedAt.After(seedNow))
	assert.True(t, p.CreatedAt.After(seedNow.AddDate(0, 0, -31)))
}

func TestClean_EmptiesTables(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	_, err := Seed(context.Background(), db, Options{
		NumUsers: 3, PostsPerUser: 1, EventsPerUser: 2, NotesPerUser: 1, SkipBcrypt: true, RandSeed: 9, Now: seedNow,
	})
	require.NoError(t, err)

	require.NoError(t, Clean(context.Background(), db, nil))

	for _, m := range []interface{}{&models.User{}, &models.Event{}, &models.Post{}, &models.Note{}, &models.Follow{}} {
		var n int64
		require.NoError(t, db.Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T", m)
	}
}

func TestClean_FlushesUserScopedCache(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	store, mr := newStore(t)

	require.NoError(t, store.StoreMembersUint(ctx, cache.FollowingKey(1), []uint{2, 3}, cache.FollowingTTL))
	require.NoError(t, store.SetJSON(ctx, cache.StatisticsKey(1), map[string]int{"total": 4}, cache.StatisticsTTL))
	require.NoError(t, store.SetJSON(ctx, cache.DiscoverFeedKey(20), []int{}, cache.DiscoverFeedTTL))
	require.NoError(t, mr.Set("session:abc", "keep"))

	require.NoError(t, Clean(ctx, db, store))

	assert.False(t, mr.Exists(cache.FollowingKey(1)))
	assert.False(t, mr.Exists(cache.StatisticsKey(1)))
	assert.False(t, mr.Exists(cache.DiscoverFeedKey(20)))
	assert.True(t, mr.Exists("session:abc"))
}

func TestSeed_ReseedDropsStaleFollowingSets(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	store, mr := newStore(t)

	// Left over from a previous database where user 1 followed nobody.
	require.NoError(t, store.StoreMembersUint(ctx, cache.FollowingKey(1), nil, cache.FollowingTTL))

	sum, err := Seed(ctx, db, Options{
		NumUsers: 5, ShouldClean: true, SkipBcrypt: true, RandSeed: 13, Now: seedNow, Cache: store,
	})
	require.NoError(t, err)
	require.NotZero(t, sum.Follows)

	var follows []models.Follow
	require.NoError(t, db.Find(&follows).Error)
	for _, fl := range follows {
		assert.False(t, mr.Exists(cache.FollowingKey(fl.FollowerID)), "follower %d", fl.FollowerID)
	}
}

const scenarioYAML = `
users:
  - username: ada
    first_name: Ada
    university: UCL
    year: 2
    follows: [grace]
    events:
      - title: Compilers exam
        type: exam
        in: 48h
        duration: 2h
        visibility: public
      - title: Compilers coursework
        type: deadline
        in: 6h
    posts:
      - content: Revision group tonight
    notes:
      - title: Parsing
        content: LL vs LR
        category: lecture
        pinned: true
  - username: grace
    follows: [ada]
`

func TestApplyScenario(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	sc, err := ParseScenario(strings.NewReader(scenarioYAML))
	require.NoError(t, err)
	require.Len(t, sc.Users, 2)
	assert.Equal(t, 48*time.Hour, sc.Users[0].Events[0].In)

	store, mr := newStore(t)
	// ada gets id 1 in the fresh database. The stale empty set must go once ada follows grace.
	require.NoError(t, store.StoreMembersUint(context.Background(), cache.FollowingKey(1), nil, cache.FollowingTTL))

	users, err := ApplyScenario(context.Background(), db, sc, Options{SkipBcrypt: true, RandSeed: 5, Now: seedNow, Cache: store})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.FollowingKey(users["ada"].ID)))
	require.Contains(t, users, "ada")
	require.Contains(t, users, "grace")
	assert.Equal(t, "ada@example.com", users["ada"].Email)

	var events []models.Event
	require.NoError(t, db.Where("creator_id = ?", users["ada"].ID).Order("start_datetime").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, "Compilers coursework", events[0].Title)
	assert.True(t, events[0].StartDatetime.Equal(seedNow.Add(6*time.Hour)))

	var mirrors, follows int64
	require.NoError(t, db.Model(&models.Post{}).Where("event_id IS NOT NULL").Count(&mirrors).Error)
	require.NoError(t, db.Model(&models.Follow{}).Count(&follows).Error)
	assert.EqualValues(t, 1, mirrors)
	assert.EqualValues(t, 2, follows)

	var note models.Note
	require.NoError(t, db.Where("owner_id = ?", users["ada"].ID).First(&note).Error)
	assert.True(t, note.IsPinned)
}

func TestParseScenario_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "users:\n  - username: a\n    colour: red\n",
		"missing name":    "users:\n  - first_name: A\n",
		"duplicate user":  "users:\n  - username: a\n  - username: a\n",
		"unknown follows": "users:\n  - username: a\n    follows: [b]\n",
		"self follow":     "users:\n  - username: a\n    follows: [a]\n",
		"repeated follow": "users:\n  - username: a\n    follows: [b, b]\n  - username: b\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScenario(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenario_RepositoryDemo(t *testing.T) {
	sc, err := LoadScenario("../../seed.yml")
	require.NoError(t, err)
	require.NotEmpty(t, sc.Users)

	db := testutil.NewSQLiteDB(t)
	users, err := ApplyScenario(context.Background(), db, sc, Options{SkipBcrypt: true, RandSeed: 11, Now: seedNow})
	require.NoError(t, err)
	assert.Len(t, users, len(sc.Users))
}
