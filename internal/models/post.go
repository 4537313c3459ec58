// Package models contains data structures for the application's domain models.
package models

import "time"

// PostPrivacy decides who may see a post.
type PostPrivacy string

const (
	PrivacyPublic        PostPrivacy = "public"
	PrivacyFollowersOnly PostPrivacy = "followers_only"
)

// MaxPostContentLength bounds Post.Content.
const MaxPostContentLength = 5000

// Post represents an item in the social feed.
type Post struct {
	ID       uint        `gorm:"primaryKey" json:"id"`
	AuthorID uint        `gorm:"not null;index" json:"author_id"`
	Author   User        `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	Content  string      `gorm:"type:text;not null" json:"content"`
	Privacy  PostPrivacy `gorm:"type:varchar(20);not null;default:'public'" json:"privacy"`
	// EventID is a weak link; it is nulled when the event goes away.
	EventID *uint  `gorm:"index;uniqueIndex:idx_posts_event_mirror,where:is_event_mirror = true" json:"event_id,omitempty"`
	Event   *Event `gorm:"foreignKey:EventID;constraint:OnDelete:SET NULL" json:"event,omitempty"`
	// IsEventMirror marks the post kept in sync with a public event.
	IsEventMirror bool `gorm:"not null;default:false" json:"is_event_mirror"`
	// LikesCount is not persisted; computed at query time
	LikesCount int `gorm:"->;-:migration" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->;-:migration" json:"comments_count"`
	// Liked and Bookmarked are relative to the requesting user (computed)
	Liked      bool      `gorm:"->;-:migration" json:"liked"`
	Bookmarked bool      `gorm:"->;-:migration" json:"bookmarked"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CanView decides visibility from the post privacy, the viewer and whether the
// viewer follows the author. viewerID 0 is an anonymous viewer.
func CanView(post *Post, viewerID uint, followsAuthor bool) bool {
	if post.Privacy == PrivacyPublic {
		return true
	}
	if viewerID == 0 {
		return false
	}
	return viewerID == post.AuthorID || followsAuthor
}

// CanDelete reports whether the user may delete the post.
func (p *Post) CanDelete(userID uint, isStaff bool) bool {
	return isStaff || (userID != 0 && p.AuthorID == userID)
}

// ValidPrivacy reports whether p is a known privacy level.
func ValidPrivacy(p PostPrivacy) bool {
	return p == PrivacyPublic || p == PrivacyFollowersOnly
}
