package service

import (
	"context"
	"fmt"
	"strings"

	"timeout/internal/models"
	"timeout/internal/repository"
	"timeout/internal/validation"
)

// NoteInput is the writable part of a note. Category defaults to other.
type NoteInput struct {
	Title    string              `json:"title" validate:"notblank,max=200"`
	Content  string              `json:"content" validate:"notblank,max=5000"`
	Category models.NoteCategory `json:"category" validate:"omitempty,note_category"`
	EventID  *uint               `json:"event_id"`
}

type NoteService struct {
	repos repository.Repos
	now   Clock
}

func NewNoteService(d Deps) *NoteService {
	return &NoteService{repos: d.Repos, now: d.clock()}
}

// List returns the user's notes, pinned first and then most recently updated.
func (s *NoteService) List(ctx context.Context, userID uint, f repository.NoteFilter) ([]models.Note, error) {
	if userID == 0 {
		return []models.Note{}, nil
	}
	if f.Category != "" && !models.ValidNoteCategory(f.Category) {
		return nil, models.NewValidationError("Unknown note category")
	}
	f.OwnerID = userID
	return s.repos.Notes.List(ctx, f)
}

func (s *NoteService) Create(ctx context.Context, userID uint, in NoteInput) (*models.Note, error) {
	note := &models.Note{OwnerID: userID}
	if err := s.apply(ctx, userID, note, in); err != nil {
		return nil, err
	}
	if err := s.repos.Notes.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteService) Update(ctx context.Context, userID, id uint, in NoteInput) (*models.Note, error) {
	note, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, userID, note, in); err != nil {
		return nil, err
	}
	note.UpdatedAt = s.now()
	if err := s.repos.Notes.Update(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// Delete removes a note. Owners and staff may delete; anyone else gets FORBIDDEN.
func (s *NoteService) Delete(ctx context.Context, userID, id uint) error {
	note, err := s.repos.Notes.GetByID(ctx, id)
	if err != nil {
		return err
	}
	staff, err := s.repos.Users.IsStaff(ctx, userID)
	if err != nil {
		return err
	}
	if !note.CanDelete(userID, staff) {
		return models.NewForbiddenError("You cannot delete this note")
	}
	return s.repos.Notes.Delete(ctx, id)
}

// TogglePin flips the pinned flag and returns the new value.
func (s *NoteService) TogglePin(ctx context.Context, userID, id uint) (bool, error) {
	note, err := s.owned(ctx, userID, id)
	if err != nil {
		return false, err
	}
	note.IsPinned = !note.IsPinned
	if err := s.repos.Notes.Update(ctx, note); err != nil {
		return false, err
	}
	return note.IsPinned, nil
}

// Share publishes the note as a public post linked to the note's event.
func (s *NoteService) Share(ctx context.Context, userID, id uint) (*models.Post, error) {
	note, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	post := &models.Post{
		AuthorID: userID,
		Content:  truncate(fmt.Sprintf("[%s] %s\n\n%s", note.Category.Label(), note.Title, note.Content), models.MaxPostContentLength),
		Privacy:  models.PrivacyPublic,
		EventID:  note.EventID,
	}
	if err := s.repos.Posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.repos.Posts.GetByID(ctx, post.ID, userID)
}

// owned loads a note the user owns. Other users' notes read as NOT_FOUND.
func (s *NoteService) owned(ctx context.Context, userID, id uint) (*models.Note, error) {
	note, err := s.repos.Notes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !note.CanEdit(userID) {
		return nil, models.NewNotFoundError("Note", id)
	}
	return note, nil
}

func (s *NoteService) apply(ctx context.Context, userID uint, note *models.Note, in NoteInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.EventID != nil {
		if _, err := s.repos.Events.GetOwned(ctx, userID, *in.EventID); err != nil {
			if models.HasCode(err, models.CodeNotFound) {
				return models.NewValidationError("event_id must reference one of your events")
			}
			return err
		}
	}
	note.Title = strings.TrimSpace(in.Title)
	note.Content = in.Content
	note.Category = orDefault(in.Category, models.NoteCategoryOther)
	note.EventID = in.EventID
	note.Event = nil
	return nil
}
