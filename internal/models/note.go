package models

import "time"

// NoteCategory groups notes.
type NoteCategory string

const (
	NoteCategoryLecture   NoteCategory = "lecture"
	NoteCategoryTodo      NoteCategory = "todo"
	NoteCategoryStudyPlan NoteCategory = "study_plan"
	NoteCategoryPersonal  NoteCategory = "personal"
	NoteCategoryOther     NoteCategory = "other"
)

var noteCategoryLabels = map[NoteCategory]string{
	NoteCategoryLecture:   "Lecture",
	NoteCategoryTodo:      "To-Do",
	NoteCategoryStudyPlan: "Study Plan",
	NoteCategoryPersonal:  "Personal",
	NoteCategoryOther:     "Other",
}

// Label is the human readable category name.
func (c NoteCategory) Label() string {
	if l, ok := noteCategoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// ValidNoteCategory reports whether c is a known category.
func ValidNoteCategory(c NoteCategory) bool {
	_, ok := noteCategoryLabels[c]
	return ok
}

// Note is a personal text item, optionally linked to an event.
type Note struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	OwnerID   uint         `gorm:"not null;index" json:"owner_id"`
	Owner     *User        `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Title     string       `gorm:"size:200;not null" json:"title"`
	Content   string       `gorm:"size:5000;not null" json:"content"`
	Category  NoteCategory `gorm:"type:varchar(20);not null;default:'other'" json:"category"`
	EventID   *uint        `gorm:"index" json:"event_id,omitempty"`
	Event     *Event       `gorm:"foreignKey:EventID;constraint:OnDelete:SET NULL" json:"event,omitempty"`
	IsPinned  bool         `gorm:"not null;default:false" json:"is_pinned"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CanEdit reports whether the user owns the note.
func (n *Note) CanEdit(userID uint) bool {
	return userID != 0 && n.OwnerID == userID
}

// CanDelete reports whether the user may delete the note.
func (n *Note) CanDelete(userID uint, isStaff bool) bool {
	return isStaff || n.CanEdit(userID)
}
