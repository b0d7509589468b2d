package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CustomerStatus string

const (
	CustomerStatusLead     CustomerStatus = "lead"
	CustomerStatusProspect CustomerStatus = "prospect"
	CustomerStatusClosed   CustomerStatus = "closed"
)

// Customer is a CRM customer record, owned by the agent it is assigned to.
type Customer struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Phone string    `gorm:"type:varchar(30);uniqueIndex" json:"phone"`
	Email string    `gorm:"type:varchar(120)" json:"email"`

	Source          string         `gorm:"type:varchar(50)" json:"source"` // facebook, referral, walk-in, ...
	Status          CustomerStatus `gorm:"type:varchar(20);default:'lead';index" json:"status"`
	Notes           string         `gorm:"type:text" json:"notes"`
	AssignedAgentID *uuid.UUID     `gorm:"type:uuid;index" json:"assigned_agent_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AssignedAgent *User `gorm:"foreignKey:AssignedAgentID" json:"assigned_agent,omitempty"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}
