package models

import (
	"strings"
	"time"
)

// User represents a student account.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email       string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password    string    `gorm:"not null" json:"-"`
	FirstName   string    `gorm:"size:150" json:"first_name"`
	LastName    string    `gorm:"size:150" json:"last_name"`
	Bio         string    `gorm:"size:500" json:"bio"`
	University  string    `gorm:"size:200" json:"university"`
	YearOfStudy int       `json:"year_of_study"`
	IsStaff     bool      `gorm:"not null;default:false" json:"is_staff"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// FollowersCount and FollowingCount are computed at query time.
	FollowersCount int `gorm:"->;-:migration" json:"followers_count"`
	FollowingCount int `gorm:"->;-:migration" json:"following_count"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full == "" {
		return u.Username
	}
	return full
}
