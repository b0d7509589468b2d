package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLog is an append-only audit trail of who did what to which record.
type ActivityLog struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID uuid.UUID `gorm:"type:uuid;index" json:"actor_id"`

	Action     string    `gorm:"type:varchar(60);not null" json:"action"` // booking.approve, customer.update, ...
	EntityType string    `gorm:"type:varchar(40);index" json:"entity_type"`
	EntityID   uuid.UUID `gorm:"type:uuid;index" json:"entity_id"`
	Detail     string    `gorm:"type:text" json:"detail"`

	CreatedAt time.Time `json:"created_at"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
