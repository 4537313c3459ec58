// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"timeout/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

// Repos bundles every repository bound to one handle, either the pool or a
// transaction.
type Repos struct {
	Users    UserRepository
	Events   EventRepository
	Posts    PostRepository
	Social   SocialRepository
	Comments CommentRepository
	Notes    NoteRepository
	Messages MessageRepository
	Stats    StatisticsRepository
}

// New binds all repositories to db.
func New(db *gorm.DB) Repos {
	return Repos{
		Users:    NewUserRepository(db),
		Events:   NewEventRepository(db),
		Posts:    NewPostRepository(db),
		Social:   NewSocialRepository(db),
		Comments: NewCommentRepository(db),
		Notes:    NewNoteRepository(db),
		Messages: NewMessageRepository(db),
		Stats:    NewStatisticsRepository(db),
	}
}

// Transactor runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx Repos) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor returns a Transactor over db.
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) Transaction(ctx context.Context, fn func(tx Repos) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// isUniqueViolation reports a unique-constraint failure from postgres or any
// driver gorm translates.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// notFound converts gorm.ErrRecordNotFound to a NOT_FOUND AppError and wraps
// everything else as internal.
func notFound(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// clampLimit bounds page sizes to 1..100 with fallback for non-positive values.
func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}
