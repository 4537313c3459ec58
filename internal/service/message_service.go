package service

import (
	"context"
	"fmt"
	"strings"

	"timeout/internal/models"
	"timeout/internal/notifications"
	"timeout/internal/repository"
	"timeout/internal/validation"
)

// MessageInput is the body of a new message.
type MessageInput struct {
	Content string `json:"content" validate:"notblank,max=2000"`
}

// ConversationView is a conversation with its messages, oldest first.
type ConversationView struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []models.Message     `json:"messages"`
}

type MessageService struct {
	repos repository.Repos
	tx    repository.Transactor
	rt    realtime
	now   Clock
}

func NewMessageService(d Deps) *MessageService {
	return &MessageService{repos: d.Repos, tx: d.Tx, rt: d.realtime(), now: d.clock()}
}

// Inbox lists the user's conversations, most recently active first, each with
// its last message and the number of unread incoming messages.
func (s *MessageService) Inbox(ctx context.Context, userID uint) ([]models.Conversation, error) {
	convs, err := s.repos.Messages.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(convs))
	for i := range convs {
		ids[i] = convs[i].ID
	}

	last, err := s.repos.Messages.LastMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	unread, err := s.repos.Messages.UnreadCounts(ctx, ids, userID)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		convs[i].LastMessage = last[convs[i].ID]
		convs[i].UnreadCount = unread[convs[i].ID]
	}
	return convs, nil
}

// StartConversation returns the two-party conversation between the users,
// creating it when missing. The bool reports whether it was created.
func (s *MessageService) StartConversation(ctx context.Context, userID, otherID uint) (*models.Conversation, bool, error) {
	if userID == otherID {
		return nil, false, models.NewInvalidOperationError("You cannot message yourself")
	}
	if _, err := s.repos.Users.GetByID(ctx, otherID); err != nil {
		return nil, false, err
	}

	var (
		conv    *models.Conversation
		created bool
	)
	err := s.tx.Transaction(ctx, func(tx repository.Repos) error {
		existing, err := tx.Messages.FindDirect(ctx, userID, otherID)
		if err != nil {
			return err
		}
		if existing != nil {
			conv = existing
			return nil
		}
		conv, err = tx.Messages.CreateConversation(ctx, []uint{userID, otherID}, s.now())
		created = err == nil
		return err
	})
	if models.HasCode(err, models.CodeConflict) {
		// Another request created the pair after our lookup.
		conv, err = s.repos.Messages.FindDirect(ctx, userID, otherID)
		if err == nil && conv == nil {
			err = models.NewInternalError(fmt.Errorf("conversation %s vanished after conflict", models.DirectConversationKey(userID, otherID)))
		}
		created = false
	}
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

// Conversation opens a conversation the user takes part in and marks the
// incoming messages read.
func (s *MessageService) Conversation(ctx context.Context, userID, id uint) (*ConversationView, error) {
	conv, err := s.repos.Messages.GetForParticipant(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.Messages.MarkRead(ctx, id, userID); err != nil {
		return nil, err
	}
	msgs, err := s.repos.Messages.ListMessages(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	return &ConversationView{Conversation: conv, Messages: msgs}, nil
}

// SendMessage appends a message and pushes it to the other participants.
func (s *MessageService) SendMessage(ctx context.Context, userID, convID uint, in MessageInput) (*models.Message, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	conv, err := s.repos.Messages.GetForParticipant(ctx, convID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg := &models.Message{
		ConversationID: convID,
		SenderID:       userID,
		Content:        strings.TrimSpace(in.Content),
		CreatedAt:      now,
	}
	err = s.tx.Transaction(ctx, func(tx repository.Repos) error {
		if err := tx.Messages.CreateMessage(ctx, msg); err != nil {
			return err
		}
		return tx.Messages.Touch(ctx, convID, now)
	})
	if err != nil {
		return nil, err
	}

	for _, p := range conv.Participants {
		if p.ID == userID {
			msg.Sender = p
		}
	}
	for _, p := range conv.Participants {
		if p.ID != userID {
			s.rt.send(ctx, p.ID, notifications.MessageReceived, msg)
		}
	}
	return msg, nil
}

// Poll returns messages newer than afterID and marks incoming ones read.
func (s *MessageService) Poll(ctx context.Context, userID, convID, afterID uint) ([]models.Message, error) {
	if _, err := s.repos.Messages.GetForParticipant(ctx, convID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.repos.Messages.ListMessages(ctx, convID, afterID)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		if _, err := s.repos.Messages.MarkRead(ctx, convID, userID); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}
