package repository

import (
	"context"
	"testing"
	"time"

	"timeout/internal/models"
	"timeout/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func postIDs(posts []models.Post) []uint {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestPostRepository_DiscoverRanking(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := New(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	old := testutil.CreatePost(t, db, bob.ID, "old but liked", models.PrivacyPublic, base)
	mid := testutil.CreatePost(t, db, bob.ID, "commented", models.PrivacyPublic, base.Add(time.Hour))
	fresh := testutil.CreatePost(t, db, bob.ID, "fresh", models.PrivacyPublic, base.Add(2*time.Hour))
	testutil.CreatePost(t, db, bob.ID, "hidden", models.PrivacyFollowersOnly, base.Add(3*time.Hour))
	own := testutil.CreatePost(t, db, alice.ID, "mine", models.PrivacyPublic, base.Add(4*time.Hour))

	_, err := repo.Social.InsertLike(ctx, carol.ID, old.ID)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Comment{PostID: mid.ID, AuthorID: carol.ID, Content: "hi"}).Error)

	posts, err := repo.Posts.ListDiscover(ctx, []uint{alice.ID}, alice.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{old.ID, mid.ID, fresh.ID}, postIDs(posts))
	assert.Equal(t, 1, posts[0].LikesCount)
	assert.Equal(t, 1, posts[1].CommentsCount)
	assert.Equal(t, "bob", posts[0].Author.Username)

	anon, err := repo.Posts.ListDiscover(ctx, nil, 0, 10)
	require.NoError(t, err)
	assert.Contains(t, postIDs(anon), own.ID)
	assert.Len(t, anon, 4)
}

func TestPostRepository_ViewerFlagsAndBookmarks(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := New(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	first := testutil.CreatePost(t, db, bob.ID, "first", models.PrivacyPublic, base)
	second := testutil.CreatePost(t, db, bob.ID, "second", models.PrivacyPublic, base.Add(time.Hour))

	_, err := repo.Social.InsertLike(ctx, alice.ID, first.ID)
	require.NoError(t, err)
	_, err = repo.Social.InsertBookmark(ctx, alice.ID, first.ID)
	require.NoError(t, err)
	_, err = repo.Social.InsertBookmark(ctx, alice.ID, second.ID)
	require.NoError(t, err)

	got, err := repo.Posts.GetByID(ctx, first.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, got.Liked)
	assert.True(t, got.Bookmarked)

	got, err = repo.Posts.GetByID(ctx, first.ID, 0)
	require.NoError(t, err)
	assert.False(t, got.Liked)
	assert.Equal(t, 1, got.LikesCount)

	bookmarked, err := repo.Posts.ListBookmarked(ctx, alice.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{second.ID, first.ID}, postIDs(bookmarked))

	_, err = repo.Posts.GetByID(ctx, 999, alice.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestSocialRepository_InsertOnceAndDelete(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := New(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, bob.ID, "p", models.PrivacyPublic, base)

	inserted, err := repo.Social.InsertLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Social.InsertLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, inserted, "duplicate insert reports already present")

	n, err := repo.Social.DeleteLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var count int64
	require.NoError(t, db.Model(&models.Like{}).Count(&count).Error)
	assert.Zero(t, count)

	inserted, err = repo.Social.InsertFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, inserted)
	following, err := repo.Social.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)

	ids, err := repo.Social.FollowingIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, ids)

	followers, err := repo.Social.Followers(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "alice", followers[0].Username)

	user, err := repo.Users.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, user.FollowersCount)
	assert.Equal(t, 0, user.FollowingCount)
}

func TestEventRepository_Windows(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := New(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	midterm := testutil.CreateEvent(t, db, &models.Event{CreatorID: alice.ID, Title: "Midterm",
		StartDatetime: base.Add(time.Hour), EndDatetime: base.Add(2 * time.Hour)})
	testutil.CreateEvent(t, db, &models.Event{CreatorID: alice.ID, Title: "Cancelled",
		Status: models.EventStatusCancelled, StartDatetime: base.Add(time.Hour), EndDatetime: base.Add(2 * time.Hour)})
	testutil.CreateEvent(t, db, &models.Event{CreatorID: bob.ID, Title: "Other user",
		StartDatetime: base.Add(time.Hour), EndDatetime: base.Add(2 * time.Hour)})
	weekly := testutil.CreateEvent(t, db, &models.Event{CreatorID: alice.ID, Title: "Lecture",
		Recurrence: models.RecurrenceWeekly, StartDatetime: base.AddDate(0, -2, 0), EndDatetime: base.AddDate(0, -2, 0).Add(time.Hour)})

	overlapping, err := repo.Events.ListOverlapping(ctx, alice.ID, base.Add(90*time.Minute), base.Add(150*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, midterm.ID, overlapping[0].ID)

	// Touching intervals do not overlap.
	touching, err := repo.Events.ListOverlapping(ctx, alice.ID, base.Add(2*time.Hour), base.Add(3*time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, touching)

	excluded, err := repo.Events.ListOverlapping(ctx, alice.ID, base, base.Add(3*time.Hour), midterm.ID)
	require.NoError(t, err)
	assert.Empty(t, excluded)

	window, err := repo.Events.ListForWindow(ctx, alice.ID, base.Add(-24*time.Hour), base.Add(24*time.Hour))
	require.NoError(t, err)
	ids := []uint{}
	for _, ev := range window {
		ids = append(ids, ev.ID)
	}
	assert.Contains(t, ids, weekly.ID)
	assert.Contains(t, ids, midterm.ID)
	assert.Len(t, ids, 3)

	_, err = repo.Events.GetOwned(ctx, bob.ID, midterm.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestEventRepository_MarkDeadlineComplete(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := New(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	deadline := testutil.CreateEvent(t, db, &models.Event{CreatorID: alice.ID, Title: "Essay",
		EventType: models.EventTypeDeadline, StartDatetime: base, EndDatetime: base.Add(time.Hour)})
	exam := testutil.CreateEvent(t, db, &models.Event{CreatorID: alice.ID, Title: "Exam",
		EventType: models.EventTypeExam, StartDatetime: base, EndDatetime: base.Add(time.Hour)})

	active, err := repo.Events.ListActiveDeadlines(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)

	n, err := repo.Events.MarkDeadlineComplete(ctx, alice.ID, deadline.ID, base)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Events.MarkDeadlineComplete(ctx, alice.ID, deadline.ID, base)
	require.NoError(t, err)
	assert.Zero(t, n, "already completed")

	n, err = repo.Events.MarkDeadlineComplete(ctx, alice.ID, exam.ID, base)
	require.NoError(t, err)
	assert.Zero(t, n, "not a deadline")

	completed, pending, err := repo.Stats.DeadlineCompletion(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), completed)
	assert.Equal(t, int64(0), pending)
}

func TestPostRepository_MirrorUniqueness(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := New(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	ev := testutil.CreateEvent(t, db, &models.Event{CreatorID: alice.ID, Title: "Talk",
		StartDatetime: base, EndDatetime: base.Add(time.Hour)})

	mirror := &models.Post{AuthorID: alice.ID, Content: "Talk", Privacy: models.PrivacyPublic, EventID: &ev.ID, IsEventMirror: true}
	require.NoError(t, repo.Posts.Create(ctx, mirror))

	dup := &models.Post{AuthorID: alice.ID, Content: "Talk again", Privacy: models.PrivacyPublic, EventID: &ev.ID, IsEventMirror: true}
	err := repo.Posts.Create(ctx, dup)
	assert.True(t, models.HasCode(err, models.CodeConflict), "got %v", err)

	// A plain post may link to the same event.
	linked := &models.Post{AuthorID: alice.ID, Content: "see you there", Privacy: models.PrivacyPublic, EventID: &ev.ID}
	require.NoError(t, repo.Posts.Create(ctx, linked))

	got, err := repo.Posts.GetMirror(ctx, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, mirror.ID, got.ID)

	require.NoError(t, repo.Posts.DeleteMirror(ctx, ev.ID))
	require.NoError(t, repo.Posts.DetachEvent(ctx, ev.ID))

	got, err = repo.Posts.GetMirror(ctx, ev.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	reloaded, err := repo.Posts.GetByID(ctx, linked.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, reloaded.EventID)
}

func TestNoteRepository_OrderingAndFilters(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := New(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	mk := func(title string, cat models.NoteCategory, pinned bool, at time.Time) *models.Note {
		n := &models.Note{OwnerID: alice.ID, Title: title, Content: "body of " + title, Category: cat,
			IsPinned: pinned, CreatedAt: at, UpdatedAt: at}
		require.NoError(t, db.Create(n).Error)
		return n
	}
	older := mk("Older", models.NoteCategoryLecture, false, base)
	newer := mk("Newer", models.NoteCategoryTodo, false, base.Add(time.Hour))
	pinned := mk("Pinned", models.NoteCategoryLecture, true, base.Add(-time.Hour))

	all, err := repo.Notes.List(ctx, NoteFilter{OwnerID: alice.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uint{pinned.ID, newer.ID, older.ID}, []uint{all[0].ID, all[1].ID, all[2].ID})

	lectures, err := repo.Notes.List(ctx, NoteFilter{OwnerID: alice.ID, Category: models.NoteCategoryLecture})
	require.NoError(t, err)
	assert.Len(t, lectures, 2)

	found, err := repo.Notes.List(ctx, NoteFilter{OwnerID: alice.ID, Query: "NEWER"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, newer.ID, found[0].ID)
}

func TestMessageRepository_DirectConversation(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := New(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	none, err := repo.Messages.FindDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	conv, err := repo.Messages.CreateConversation(ctx, []uint{alice.ID, bob.ID}, base)
	require.NoError(t, err)
	assert.Len(t, conv.Participants, 2)

	found, err := repo.Messages.FindDirect(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, conv.ID, found.ID)

	_, err = repo.Messages.CreateConversation(ctx, []uint{bob.ID, alice.ID}, base)
	assert.True(t, models.HasCode(err, models.CodeConflict), "second conversation for the pair: %v", err)

	none, err = repo.Messages.FindDirect(ctx, alice.ID, carol.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = repo.Messages.GetForParticipant(ctx, conv.ID, carol.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	for i, content := range []string{"hi", "hello", "how are you"} {
		sender := alice.ID
		if i == 1 {
			sender = bob.ID
		}
		require.NoError(t, repo.Messages.CreateMessage(ctx, &models.Message{
			ConversationID: conv.ID, SenderID: sender, Content: content, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	unread, err := repo.Messages.UnreadCounts(ctx, []uint{conv.ID}, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread[conv.ID])

	last, err := repo.Messages.LastMessages(ctx, []uint{conv.ID})
	require.NoError(t, err)
	assert.Equal(t, "how are you", last[conv.ID].Content)

	marked, err := repo.Messages.MarkRead(ctx, conv.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	msgs, err := repo.Messages.ListMessages(ctx, conv.ID, last[conv.ID].ID-1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "how are you", msgs[0].Content)
}

func TestTransactor_RollsBack(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")

	err := NewTransactor(db).Transaction(ctx, func(tx Repos) error {
		if err := tx.Events.Create(ctx, &models.Event{CreatorID: alice.ID, Title: "Temp", EventType: models.EventTypeOther,
			Status: models.EventStatusUpcoming, Visibility: models.VisibilityPrivate, Recurrence: models.RecurrenceNone,
			StartDatetime: base, EndDatetime: base.Add(time.Hour)}); err != nil {
			return err
		}
		return models.NewInvalidOperationError("abort")
	})
	assert.True(t, models.HasCode(err, models.CodeInvalidOperation))

	var n int64
	require.NoError(t, db.Model(&models.Event{}).Count(&n).Error)
	assert.Zero(t, n)
}
