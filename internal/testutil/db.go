// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"timeout/internal/database"
	"timeout/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a migrated in-memory database with foreign keys on. It
// keeps a single connection, so code running inside a transaction must only
// use the transaction handle.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts a user with a unique username derived from name.
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{
		Username: name,
		Email:    name + "@example.com",
		Password: "x",
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Follow makes follower follow followee.
func Follow(t testing.TB, db *gorm.DB, follower, followee uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.Follow{FollowerID: follower, FolloweeID: followee}).Error)
}

// CreatePost inserts a post with an explicit creation time.
func CreatePost(t testing.TB, db *gorm.DB, authorID uint, content string, privacy models.PostPrivacy, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{
		AuthorID:  authorID,
		Content:   content,
		Privacy:   privacy,
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreateEvent inserts ev after filling the fields tests rarely care about.
func CreateEvent(t testing.TB, db *gorm.DB, ev *models.Event) *models.Event {
	t.Helper()
	if ev.EventType == "" {
		ev.EventType = models.EventTypeOther
	}
	if ev.Status == "" {
		ev.Status = models.EventStatusUpcoming
	}
	if ev.Visibility == "" {
		ev.Visibility = models.VisibilityPrivate
	}
	if ev.Recurrence == "" {
		ev.Recurrence = models.RecurrenceNone
	}
	require.NoError(t, db.Create(ev).Error)
	return ev
}
