package models

import (
	"fmt"
	"time"
)

// MaxMessageContentLength bounds Message.Content.
const MaxMessageContentLength = 2000

// Conversation is a private thread between participants.
type Conversation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Participants []User    `gorm:"many2many:conversation_participants;constraint:OnDelete:CASCADE" json:"participants"`
	// DirectKey is set on two-party conversations and unique across them.
	DirectKey    *string   `gorm:"size:64;uniqueIndex" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `gorm:"index" json:"updated_at"`

	// Populated for inbox listings.
	LastMessage *Message `gorm:"-" json:"last_message,omitempty"`
	UnreadCount int      `gorm:"-" json:"unread_count"`
}

// DirectConversationKey names the pair a and b in either order.
func DirectConversationKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// HasParticipant reports whether the user takes part in the conversation.
func (c *Conversation) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the first participant that is not userID.
func (c *Conversation) OtherParticipant(userID uint) *User {
	for i := range c.Participants {
		if c.Participants[i].ID != userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// Message is a single entry in a conversation.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint      `gorm:"not null;index" json:"sender_id"`
	Sender         User      `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"sender"`
	Content        string    `gorm:"size:2000;not null" json:"content"`
	IsRead         bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`

	Conversation *Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}
