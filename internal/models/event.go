package models

import "time"

// EventType classifies a calendar entry.
type EventType string

const (
	EventTypeDeadline     EventType = "deadline"
	EventTypeExam         EventType = "exam"
	EventTypeClass        EventType = "class"
	EventTypeMeeting      EventType = "meeting"
	EventTypeStudySession EventType = "study_session"
	EventTypeOther        EventType = "other"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Visibility controls whether an event is mirrored into the public feed.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Recurrence is how often an event repeats.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// Event represents a calendar entry owned by its creator.
type Event struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	CreatorID     uint        `gorm:"not null;index:idx_events_creator_start,priority:1" json:"creator_id"`
	Creator       *User       `gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE" json:"creator,omitempty"`
	Title         string      `gorm:"size:200;not null" json:"title"`
	Description   string      `gorm:"size:1000" json:"description"`
	EventType     EventType   `gorm:"type:varchar(20);not null;default:'other'" json:"event_type"`
	Status        EventStatus `gorm:"type:varchar(20);not null;default:'upcoming'" json:"status"`
	Visibility    Visibility  `gorm:"type:varchar(10);not null;default:'private'" json:"visibility"`
	Recurrence    Recurrence  `gorm:"type:varchar(10);not null;default:'none'" json:"recurrence"`
	StartDatetime time.Time   `gorm:"not null;index:idx_events_creator_start,priority:2" json:"start_datetime"`
	EndDatetime   time.Time   `gorm:"not null" json:"end_datetime"`
	Location      string      `gorm:"size:200" json:"location"`
	IsAllDay      bool        `gorm:"not null;default:false" json:"is_all_day"`
	AllowConflict bool        `gorm:"not null;default:false" json:"allow_conflict"`
	IsCompleted   bool        `gorm:"not null;default:false" json:"is_completed"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// IsDeadline reports whether the event is a deadline.
func (e *Event) IsDeadline() bool {
	return e.EventType == EventTypeDeadline
}

// IsRecurring reports whether the event repeats.
func (e *Event) IsRecurring() bool {
	return e.Recurrence != "" && e.Recurrence != RecurrenceNone
}

// Duration is the length of a single occurrence.
func (e *Event) Duration() time.Duration {
	return e.EndDatetime.Sub(e.StartDatetime)
}

// IsOngoing reports whether now falls inside [start, end].
func (e *Event) IsOngoing(now time.Time) bool {
	return !now.Before(e.StartDatetime) && !now.After(e.EndDatetime)
}

// IsPast reports whether the event has ended.
func (e *Event) IsPast(now time.Time) bool {
	return e.EndDatetime.Before(now)
}

// ValidEventType reports whether t is one of the known event types.
func ValidEventType(t EventType) bool {
	switch t {
	case EventTypeDeadline, EventTypeExam, EventTypeClass, EventTypeMeeting, EventTypeStudySession, EventTypeOther:
		return true
	}
	return false
}
