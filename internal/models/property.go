package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PropertyStatus string

const (
	PropertyStatusAvailable PropertyStatus = "AVAILABLE"
	PropertyStatusReserved  PropertyStatus = "RESERVED"
	PropertyStatusSold      PropertyStatus = "SOLD"
)

// Project is a development project grouping units for sale.
type Project struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Developer string    `gorm:"type:varchar(120)" json:"developer"`
	Location  string    `gorm:"type:varchar(255)" json:"location"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// Property is a sellable unit. Status moves only through the booking
// lifecycle (reserve/release/sell) or explicit admin correction.
type Property struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`

	Code  string          `gorm:"type:varchar(40);uniqueIndex;not null" json:"code"` // e.g. A12-07
	Type  string          `gorm:"type:varchar(40)" json:"type"`                      // apartment, villa, land, ...
	Block string          `gorm:"type:varchar(20)" json:"block"`
	Floor int             `json:"floor"`
	Area  float64         `json:"area"` // m2
	Price decimal.Decimal `gorm:"type:numeric(18,2)" json:"price"`

	Status    PropertyStatus `gorm:"type:varchar(20);default:'AVAILABLE';index" json:"status"`
	Images    datatypes.JSON `json:"images"`    // ["url", ...]
	Amenities datatypes.JSON `json:"amenities"` // ["pool", "gym", ...]

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

func (p *Property) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
