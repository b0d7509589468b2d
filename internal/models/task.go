package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "open"
	TaskStatusDone TaskStatus = "done"
)

// Task is a to-do item for an agent, optionally tied to a customer or booking.
type Task struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title      string    `gorm:"not null" json:"title"`
	Detail     string    `gorm:"type:text" json:"detail"`
	AssigneeID uuid.UUID `gorm:"type:uuid;not null;index" json:"assignee_id"`

	CustomerID *uuid.UUID `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	BookingID  *uuid.UUID `gorm:"type:uuid;index" json:"booking_id,omitempty"`

	DueAt  *time.Time `json:"due_at,omitempty"`
	Status TaskStatus `gorm:"type:varchar(10);default:'open';index" json:"status"`

	CreatedBy uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Assignee *User `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}

// Event is a calendar entry (viewing, meeting, handover, ...).
type Event struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title   string    `gorm:"not null" json:"title"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	StartsAt time.Time      `gorm:"not null;index" json:"starts_at"`
	EndsAt   *time.Time     `json:"ends_at,omitempty"`
	Meta     datatypes.JSON `json:"meta"` // location, attendees, links

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}
