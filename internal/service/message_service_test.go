package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeout/internal/models"
	"timeout/internal/notifications"
	"timeout/internal/repository"
)

// tick makes the fixture clock advance a minute per reading.
func tick(f *fixture) {
	now := testNow
	f.deps.Now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func TestMessageService_StartConversation(t *testing.T) {
	f := newFixture(t)
	svc := NewMessageService(f.deps)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	conv, created, err := svc.StartConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, conv.Participants, 2)

	again, created, err := svc.StartConversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, again.ID)

	_, _, err = svc.StartConversation(ctx, alice.ID, alice.ID)
	assertCode(t, err, models.CodeInvalidOperation)
	_, _, err = svc.StartConversation(ctx, alice.ID, 404)
	assertCode(t, err, models.CodeNotFound)
}

// staleLookupTx hides existing conversations from lookups inside the
// transaction, as when a concurrent request commits the pair after our read.
type staleLookupTx struct {
	inner repository.Transactor
}

type staleMessages struct {
	repository.MessageRepository
}

func (staleMessages) FindDirect(context.Context, uint, uint) (*models.Conversation, error) {
	return nil, nil
}

func (s staleLookupTx) Transaction(ctx context.Context, fn func(tx repository.Repos) error) error {
	return s.inner.Transaction(ctx, func(tx repository.Repos) error {
		tx.Messages = staleMessages{tx.Messages}
		return fn(tx)
	})
}

func TestMessageService_StartConversation_LosesCreateRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	first, created, err := NewMessageService(f.deps).StartConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, created)

	racing := f.deps
	racing.Tx = staleLookupTx{inner: f.deps.Tx}
	conv, created, err := NewMessageService(racing).StartConversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, conv.ID)

	var n int64
	require.NoError(t, f.db.Model(&models.Conversation{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestMessageService_SendReadAndPoll(t *testing.T) {
	f := newFixture(t)
	svc := NewMessageService(f.deps)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	eve := f.user(t, "eve")

	conv, _, err := svc.StartConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	hi, err := svc.SendMessage(ctx, alice.ID, conv.ID, MessageInput{Content: " hi bob "})
	require.NoError(t, err)
	assert.Equal(t, "hi bob", hi.Content)
	assert.Equal(t, "alice", hi.Sender.Username)
	_, err = svc.SendMessage(ctx, alice.ID, conv.ID, MessageInput{Content: "are you there?"})
	require.NoError(t, err)

	pushed := f.notifier.ofType(notifications.MessageReceived)
	require.Len(t, pushed, 2)
	assert.Equal(t, bob.ID, pushed[0].UserID)

	_, err = svc.SendMessage(ctx, eve.ID, conv.ID, MessageInput{Content: "let me in"})
	assertCode(t, err, models.CodeNotFound)
	_, err = svc.SendMessage(ctx, alice.ID, conv.ID, MessageInput{Content: "  "})
	assertCode(t, err, models.CodeValidation)
	_, err = svc.SendMessage(ctx, alice.ID, conv.ID, MessageInput{Content: strings.Repeat("a", models.MaxMessageContentLength+1)})
	assertCode(t, err, models.CodeValidation)

	inbox, err := svc.Inbox(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, 2, inbox[0].UnreadCount)
	require.NotNil(t, inbox[0].LastMessage)
	assert.Equal(t, "are you there?", inbox[0].LastMessage.Content)

	view, err := svc.Conversation(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, hi.ID, view.Messages[0].ID)

	inbox, err = svc.Inbox(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, inbox[0].UnreadCount)

	reply, err := svc.SendMessage(ctx, bob.ID, conv.ID, MessageInput{Content: "yes"})
	require.NoError(t, err)

	polled, err := svc.Poll(ctx, alice.ID, conv.ID, hi.ID)
	require.NoError(t, err)
	require.Len(t, polled, 2)
	assert.Equal(t, reply.ID, polled[1].ID)

	inbox, err = svc.Inbox(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, inbox[0].UnreadCount)

	polled, err = svc.Poll(ctx, alice.ID, conv.ID, reply.ID)
	require.NoError(t, err)
	assert.Empty(t, polled)

	_, err = svc.Poll(ctx, eve.ID, conv.ID, 0)
	assertCode(t, err, models.CodeNotFound)
}

func TestMessageService_InboxOrderedByActivity(t *testing.T) {
	f := newFixture(t)
	tick(f)
	svc := NewMessageService(f.deps)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")

	withBob, _, err := svc.StartConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	withCarol, _, err := svc.StartConversation(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	inbox, err := svc.Inbox(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, withCarol.ID, inbox[0].ID)
	assert.Nil(t, inbox[0].LastMessage)

	_, err = svc.SendMessage(ctx, bob.ID, withBob.ID, MessageInput{Content: "ping"})
	require.NoError(t, err)

	inbox, err = svc.Inbox(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, withBob.ID, inbox[0].ID)
	assert.Equal(t, 1, inbox[0].UnreadCount)

	inbox, err = svc.Inbox(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{withCarol.ID}, []uint{inbox[0].ID})
}
