package repository

import (
	"context"
	"errors"
	"time"

	"timeout/internal/models"
	"timeout/internal/observability"

	"gorm.io/gorm"
)

// MessageRepository defines persistence operations for conversations and messages.
type MessageRepository interface {
	// FindDirect returns the conversation between exactly a and b, or nil, nil.
	FindDirect(ctx context.Context, a, b uint) (*models.Conversation, error)
	// CreateConversation returns CONFLICT when two participants already
	// share a conversation.
	CreateConversation(ctx context.Context, participantIDs []uint, at time.Time) (*models.Conversation, error)
	// GetForParticipant returns NOT_FOUND unless userID takes part in the conversation.
	GetForParticipant(ctx context.Context, conversationID, userID uint) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error)
	LastMessages(ctx context.Context, conversationIDs []uint) (map[uint]*models.Message, error)
	UnreadCounts(ctx context.Context, conversationIDs []uint, readerID uint) (map[uint]int, error)
	// ListMessages returns messages with id > afterID, oldest first.
	ListMessages(ctx context.Context, conversationID, afterID uint) ([]models.Message, error)
	// MarkRead marks every message not sent by readerID as read.
	MarkRead(ctx context.Context, conversationID, readerID uint) (int64, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	Touch(ctx context.Context, conversationID uint, at time.Time) error
}

type messageRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewMessageRepository returns a gorm MessageRepository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db, log: observability.NewRepoLogger("messages")}
}

const participantsTable = "conversation_participants"

func (r *messageRepository) FindDirect(ctx context.Context, a, b uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Preload("Participants").
		Where("direct_key = ?", models.DirectConversationKey(a, b)).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &conv, nil
}

func (r *messageRepository) CreateConversation(ctx context.Context, participantIDs []uint, at time.Time) (*models.Conversation, error) {
	conv := models.Conversation{CreatedAt: at, UpdatedAt: at}
	if len(participantIDs) == 2 {
		key := models.DirectConversationKey(participantIDs[0], participantIDs[1])
		conv.DirectKey = &key
	}
	db := r.db.WithContext(ctx)
	if err := db.Omit("Participants").Create(&conv).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, models.NewConflictError("Conversation already exists", nil)
		}
		r.log.LogError(ctx, err, "create_conversation")
		return nil, models.NewInternalError(err)
	}

	rows := make([]map[string]interface{}, 0, len(participantIDs))
	for _, id := range participantIDs {
		rows = append(rows, map[string]interface{}{"conversation_id": conv.ID, "user_id": id})
	}
	if err := db.Table(participantsTable).Create(rows).Error; err != nil {
		r.log.LogError(ctx, err, "add_participants")
		return nil, models.NewInternalError(err)
	}

	if err := db.Preload("Participants").First(&conv, conv.ID).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"conversation_id": conv.ID})
	return &conv, nil
}

func (r *messageRepository) GetForParticipant(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ? AND id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = ?)", conversationID, userID).
		First(&conv).Error
	if err != nil {
		return nil, notFound(err, "Conversation", conversationID)
	}
	return &conv, nil
}

func (r *messageRepository) ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	convs := []models.Conversation{}
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = ?)", userID).
		Order("updated_at DESC, id DESC").
		Find(&convs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return convs, nil
}

func (r *messageRepository) LastMessages(ctx context.Context, conversationIDs []uint) (map[uint]*models.Message, error) {
	out := make(map[uint]*models.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("id IN (SELECT MAX(id) FROM messages WHERE conversation_id IN ? GROUP BY conversation_id)", conversationIDs).
		Find(&msgs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range msgs {
		out[msgs[i].ConversationID] = &msgs[i]
	}
	return out, nil
}

func (r *messageRepository) UnreadCounts(ctx context.Context, conversationIDs []uint, readerID uint) (map[uint]int, error) {
	out := make(map[uint]int, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ConversationID uint
		N              int
	}
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS n").
		Where("conversation_id IN ? AND sender_id <> ? AND is_read = ?", conversationIDs, readerID, false).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		out[row.ConversationID] = row.N
	}
	return out, nil
}

func (r *messageRepository) ListMessages(ctx context.Context, conversationID, afterID uint) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ? AND id > ?", conversationID, afterID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return msgs, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *messageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Omit("Sender", "Conversation").Create(msg).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"message_id": msg.ID, "conversation_id": msg.ConversationID})
	return nil
}

func (r *messageRepository) Touch(ctx context.Context, conversationID uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumn("updated_at", at).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
