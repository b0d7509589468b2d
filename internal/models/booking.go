package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "PENDING"
	BookingStatusApproved   BookingStatus = "APPROVED"
	BookingStatusDeposited  BookingStatus = "DEPOSITED"
	BookingStatusContracted BookingStatus = "CONTRACTED"
	BookingStatusCompleted  BookingStatus = "COMPLETED"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from s.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// Booking links a customer to a property with a financial and status
// lifecycle. Bookings are never deleted once ledger entries exist; the
// lifecycle ends in COMPLETED or CANCELLED instead.
type Booking struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PropertyID uuid.UUID `gorm:"type:uuid;not null;index" json:"property_id"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index" json:"customer_id"`

	AgreedPrice   decimal.Decimal  `gorm:"type:numeric(18,2)" json:"agreed_price"`
	DepositAmount *decimal.Decimal `gorm:"type:numeric(18,2)" json:"deposit_amount,omitempty"`
	PaidAmount    decimal.Decimal  `gorm:"type:numeric(18,2);default:0" json:"paid_amount"`

	DepositDate  *time.Time `json:"deposit_date,omitempty"`
	ContractDate *time.Time `json:"contract_date,omitempty"`
	HandoverDate *time.Time `json:"handover_date,omitempty"`

	Status             BookingStatus `gorm:"type:varchar(20);default:'PENDING';index" json:"status"`
	CancellationReason *string       `gorm:"type:text" json:"cancellation_reason,omitempty"`
	Notes              string        `gorm:"type:text" json:"notes"`
	CreatedBy          uuid.UUID     `gorm:"type:uuid;index" json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Property     *Property     `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	Customer     *Customer     `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:BookingID" json:"transactions,omitempty"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeCommission TransactionType = "COMMISSION"
	TransactionTypeRefund     TransactionType = "REFUND"
)

// Transaction is an append-only ledger entry attached to a booking.
// Rows are created once and never updated or deleted.
type Transaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;not null;index" json:"booking_id"`

	Type          TransactionType `gorm:"type:varchar(20);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2)" json:"amount"`
	PaymentMethod string          `gorm:"type:varchar(50)" json:"payment_method"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedBy     uuid.UUID       `gorm:"type:uuid" json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}
