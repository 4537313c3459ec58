package models

import "time"

// MaxCommentContentLength bounds Comment.Content.
const MaxCommentContentLength = 1000

// Comment is a reply on a post, optionally nested under another comment.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"`
	Parent    *Comment  `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	Replies   []Comment `gorm:"-" json:"replies,omitempty"`
	Content   string    `gorm:"size:1000;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanDelete reports whether the user may delete the comment.
func (c *Comment) CanDelete(userID uint, isStaff bool) bool {
	return isStaff || (userID != 0 && c.AuthorID == userID)
}
