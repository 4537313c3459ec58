package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeout/internal/models"
	"timeout/internal/repository"
	"timeout/internal/testutil"
)

func noteIDs(notes []models.Note) []uint {
	ids := make([]uint, len(notes))
	for i := range notes {
		ids[i] = notes[i].ID
	}
	return ids
}

func TestNoteService_ListPinnedFirst(t *testing.T) {
	f := newFixture(t)
	svc := NewNoteService(f.deps)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	first, err := svc.Create(ctx, alice.ID, NoteInput{Title: "Week 1", Content: "intro", Category: models.NoteCategoryLecture})
	require.NoError(t, err)
	second, err := svc.Create(ctx, alice.ID, NoteInput{Title: "Groceries", Content: "milk"})
	require.NoError(t, err)
	third, err := svc.Create(ctx, alice.ID, NoteInput{Title: "Week 2", Content: "recursion", Category: models.NoteCategoryLecture})
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob.ID, NoteInput{Title: "Bob's", Content: "private"})
	require.NoError(t, err)

	assert.Equal(t, models.NoteCategoryOther, second.Category)

	pinned, err := svc.TogglePin(ctx, alice.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, pinned)

	notes, err := svc.List(ctx, alice.ID, repository.NoteFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID, third.ID, second.ID}, noteIDs(notes))

	notes, err = svc.List(ctx, alice.ID, repository.NoteFilter{Category: models.NoteCategoryLecture})
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID, third.ID}, noteIDs(notes))

	notes, err = svc.List(ctx, alice.ID, repository.NoteFilter{Query: "RECURSION"})
	require.NoError(t, err)
	assert.Equal(t, []uint{third.ID}, noteIDs(notes))

	// OwnerID in the filter is always replaced by the caller.
	notes, err = svc.List(ctx, alice.ID, repository.NoteFilter{OwnerID: bob.ID})
	require.NoError(t, err)
	assert.Len(t, notes, 3)

	_, err = svc.List(ctx, alice.ID, repository.NoteFilter{Category: "recipes"})
	assertCode(t, err, models.CodeValidation)

	notes, err = svc.List(ctx, 0, repository.NoteFilter{})
	require.NoError(t, err)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)

	pinned, err = svc.TogglePin(ctx, alice.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, pinned)
}

func TestNoteService_Ownership(t *testing.T) {
	f := newFixture(t)
	svc := NewNoteService(f.deps)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	note, err := svc.Create(ctx, alice.ID, NoteInput{Title: "Plan", Content: "revise"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, bob.ID, note.ID, NoteInput{Title: "Mine now", Content: "x"})
	assertCode(t, err, models.CodeNotFound)
	_, err = svc.TogglePin(ctx, bob.ID, note.ID)
	assertCode(t, err, models.CodeNotFound)
	_, err = svc.Share(ctx, bob.ID, note.ID)
	assertCode(t, err, models.CodeNotFound)
	assertCode(t, svc.Delete(ctx, bob.ID, note.ID), models.CodeForbidden)

	updated, err := svc.Update(ctx, alice.ID, note.ID, NoteInput{Title: " Plan v2 ", Content: "revise more", Category: models.NoteCategoryStudyPlan})
	require.NoError(t, err)
	assert.Equal(t, "Plan v2", updated.Title)
	assert.Equal(t, models.NoteCategoryStudyPlan, updated.Category)

	require.NoError(t, svc.Delete(ctx, alice.ID, note.ID))
	assertCode(t, svc.Delete(ctx, alice.ID, note.ID), models.CodeNotFound)
}

func TestNoteService_EventLinkMustBeOwned(t *testing.T) {
	f := newFixture(t)
	svc := NewNoteService(f.deps)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	ev := testutil.CreateEvent(t, f.db, &models.Event{CreatorID: alice.ID, Title: "Lecture", StartDatetime: at(10, 0), EndDatetime: at(11, 0)})

	_, err := svc.Create(ctx, bob.ID, NoteInput{Title: "Sneaky", Content: "x", EventID: &ev.ID})
	assertCode(t, err, models.CodeValidation)

	note, err := svc.Create(ctx, alice.ID, NoteInput{Title: "Slides", Content: "x", EventID: &ev.ID})
	require.NoError(t, err)
	notes, err := svc.List(ctx, alice.ID, repository.NoteFilter{EventID: ev.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{note.ID}, noteIDs(notes))
}

func TestNoteService_Share(t *testing.T) {
	f := newFixture(t)
	svc := NewNoteService(f.deps)
	ctx := context.Background()
	alice := f.user(t, "alice")
	ev := testutil.CreateEvent(t, f.db, &models.Event{CreatorID: alice.ID, Title: "Lecture", StartDatetime: at(10, 0), EndDatetime: at(11, 0)})
	note, err := svc.Create(ctx, alice.ID, NoteInput{
		Title: "Graphs", Content: "BFS then DFS", Category: models.NoteCategoryLecture, EventID: &ev.ID,
	})
	require.NoError(t, err)

	post, err := svc.Share(ctx, alice.ID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "[Lecture] Graphs\n\nBFS then DFS", post.Content)
	assert.Equal(t, models.PrivacyPublic, post.Privacy)
	assert.Equal(t, alice.ID, post.AuthorID)
	require.NotNil(t, post.EventID)
	assert.Equal(t, ev.ID, *post.EventID)
	assert.False(t, post.IsEventMirror)
}
