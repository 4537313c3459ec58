package repository

import (
	"context"
	"strings"

	"timeout/internal/models"
	"timeout/internal/observability"

	"gorm.io/gorm"
)

// NoteFilter narrows a note listing. Zero fields do not filter.
type NoteFilter struct {
	OwnerID  uint
	Category models.NoteCategory
	EventID  uint
	Query    string
}

// NoteRepository defines persistence operations for notes.
type NoteRepository interface {
	Create(ctx context.Context, note *models.Note) error
	Update(ctx context.Context, note *models.Note) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.Note, error)
	// List returns pinned notes first, then the most recently updated.
	List(ctx context.Context, f NoteFilter) ([]models.Note, error)
	// DetachEvent clears event_id on every note linked to eventID.
	DetachEvent(ctx context.Context, eventID uint) error
}

type noteRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewNoteRepository returns a gorm NoteRepository.
func NewNoteRepository(db *gorm.DB) NoteRepository {
	return &noteRepository{db: db, log: observability.NewRepoLogger("notes")}
}

func (r *noteRepository) Create(ctx context.Context, note *models.Note) error {
	if err := r.db.WithContext(ctx).Omit("Owner", "Event").Create(note).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"note_id": note.ID})
	return nil
}

func (r *noteRepository) Update(ctx context.Context, note *models.Note) error {
	if err := r.db.WithContext(ctx).Omit("Owner", "Event").Save(note).Error; err != nil {
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"note_id": note.ID})
	return nil
}

func (r *noteRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Note{}, id).Error; err != nil {
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"note_id": id})
	return nil
}

func (r *noteRepository) GetByID(ctx context.Context, id uint) (*models.Note, error) {
	var note models.Note
	if err := r.db.WithContext(ctx).First(&note, id).Error; err != nil {
		return nil, notFound(err, "Note", id)
	}
	return &note, nil
}

func (r *noteRepository) List(ctx context.Context, f NoteFilter) ([]models.Note, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", f.OwnerID)
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.EventID != 0 {
		q = q.Where("event_id = ?", f.EventID)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", like, like)
	}

	notes := []models.Note{}
	if err := q.Order("is_pinned DESC, updated_at DESC, id DESC").Find(&notes).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return notes, nil
}

func (r *noteRepository) DetachEvent(ctx context.Context, eventID uint) error {
	err := r.db.WithContext(ctx).Model(&models.Note{}).
		Where("event_id = ?", eventID).
		Update("event_id", nil).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
